package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionType is the category of an interaction between a person and a location.
type ActionType string

const (
	ActionVisited       ActionType = "visited"
	ActionWantToVisit   ActionType = "want_to_visit"
	ActionWantToRevisit ActionType = "want_to_revisit"
	ActionCreated       ActionType = "created"
	ActionShared        ActionType = "shared"
	ActionClaimed       ActionType = "claimed"
	ActionUpdated       ActionType = "updated"
	ActionLiked         ActionType = "liked"
	ActionCommented     ActionType = "commented"
	ActionFollowed      ActionType = "followed"
)

var validActionTypes = map[ActionType]struct{}{
	ActionVisited:       {},
	ActionWantToVisit:   {},
	ActionWantToRevisit: {},
	ActionCreated:       {},
	ActionShared:        {},
	ActionClaimed:       {},
	ActionUpdated:       {},
	ActionLiked:         {},
	ActionCommented:     {},
	ActionFollowed:      {},
}

func (a ActionType) Valid() bool {
	_, ok := validActionTypes[a]
	return ok
}

func (a ActionType) String() string { return string(a) }

// ParseActionType converts raw input into an ActionType.
func ParseActionType(raw string) (ActionType, error) {
	a := ActionType(raw)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action type %q: %w", raw, ErrValidation)
	}
	return a, nil
}

// Interaction (a "story") records that a person performed an action on a location.
// At most one exists per (PersonID, LocationID, ActionType).
type Interaction struct {
	ID          uuid.UUID  `json:"id"`
	PersonID    uuid.UUID  `json:"person_id"`
	LocationID  uuid.UUID  `json:"location_id"`
	ActionType  ActionType `json:"action_type"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Tags of the referenced location, filled by the store when listing.
	LocationTags TagSet `json:"location_tags,omitempty"`
}

// Validate checks the fields required to persist an interaction.
func (i Interaction) Validate() error {
	return ValidateInteractionKey(i.PersonID, i.LocationID, i.ActionType)
}

func ValidateInteractionKey(personID, locationID uuid.UUID, action ActionType) error {
	if personID == uuid.Nil {
		return fmt.Errorf("person id is required: %w", ErrValidation)
	}
	if locationID == uuid.Nil {
		return fmt.Errorf("location id is required: %w", ErrValidation)
	}
	if action == "" {
		return fmt.Errorf("action type is required: %w", ErrValidation)
	}
	if !action.Valid() {
		return fmt.Errorf("unknown action type %q: %w", action, ErrValidation)
	}
	return nil
}

// PreferenceVector is derived per call from a person's interaction history.
type PreferenceVector struct {
	TagWeight  map[string]float64
	VisitedSet map[uuid.UUID]struct{}
}

func (p PreferenceVector) HasVisited(id uuid.UUID) bool {
	_, ok := p.VisitedSet[id]
	return ok
}
