package models

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// BusinessStatus mirrors the operational status reported for a place.
type BusinessStatus string

const (
	BusinessStatusOperational       BusinessStatus = "OPERATIONAL"
	BusinessStatusClosedTemporarily BusinessStatus = "CLOSED_TEMPORARILY"
	BusinessStatusClosedPermanently BusinessStatus = "CLOSED_PERMANENTLY"
)

// PersonRole classifies a person. It never takes part in scoring.
type PersonRole string

const (
	PersonRoleTraveler PersonRole = "traveler"
	PersonRoleLocal    PersonRole = "local"
	PersonRoleMerchant PersonRole = "merchant"
)

type Person struct {
	ID   uuid.UUID  `json:"id"`
	Role PersonRole `json:"role"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a place a person can interact with.
type Location struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Address        string          `json:"address"`
	Summary        *string         `json:"summary,omitempty"`
	Coordinates    *Coordinates    `json:"coordinates,omitempty"`
	Tags           TagSet          `json:"tags"`
	Rating         *float64        `json:"rating,omitempty"`
	RatingCount    *int            `json:"rating_count,omitempty"`
	BusinessStatus *BusinessStatus `json:"business_status,omitempty"`
}

// LocationStats is a location joined with its interaction aggregates.
type LocationStats struct {
	Location
	VisitCount       int `json:"visit_count"`
	WantToVisitCount int `json:"want_to_visit_count"`
}

// TagSet holds place-type labels. Persisted as a JSON array, used as a set in memory.
type TagSet map[string]struct{}

func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		s[t] = struct{}{}
	}
	return s
}

func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Intersects reports whether s and other share at least one tag.
func (s TagSet) Intersects(other TagSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for t := range small {
		if large.Has(t) {
			return true
		}
	}
	return false
}

// Sorted returns the tags in lexicographic order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *TagSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}
