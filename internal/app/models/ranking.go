package models

import "github.com/google/uuid"

// ScoreBreakdown lists the bounded components of a recommendation score.
type ScoreBreakdown struct {
	Tag           float64 `json:"tag"`
	Rating        float64 `json:"rating"`
	Popularity    float64 `json:"popularity"`
	Collaborative float64 `json:"collaborative"`
}

func (b ScoreBreakdown) Total() float64 {
	return b.Tag + b.Rating + b.Popularity + b.Collaborative
}

// RankedLocation is a recommendation result with its score and justification.
type RankedLocation struct {
	Location    LocationStats  `json:"location"`
	Score       float64        `json:"score"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
	Reason      string         `json:"reason"`
	MatchedTags []string       `json:"matched_tags,omitempty"`
}

type SortBy string

const (
	SortByRelevance  SortBy = "relevance"
	SortByRating     SortBy = "rating"
	SortByPopularity SortBy = "popularity"
	SortByName       SortBy = "name"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type SearchFilters struct {
	Types          TagSet          `json:"types,omitempty"`
	MinRating      *float64        `json:"min_rating,omitempty"`
	BusinessStatus *BusinessStatus `json:"business_status,omitempty"`
}

type SortOptions struct {
	SortBy    SortBy    `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order,omitempty"`
}

// SearchCriteria is what the location store needs to pre-filter search rows.
type SearchCriteria struct {
	Query   string
	Filters SearchFilters
}

type SearchResult struct {
	Locations []LocationStats `json:"locations"`
	Total     int             `json:"total"`
	HasMore   bool            `json:"has_more"`
}

type NameMatch struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Tags    TagSet    `json:"tags"`
}

type RatingRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type SearchFilterOptions struct {
	Types            []string         `json:"types"`
	RatingRange      RatingRange      `json:"rating_range"`
	BusinessStatuses []BusinessStatus `json:"business_statuses"`
}
