package recommendation

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// MockInteractionStore is a mock implementation of InteractionReader and InteractionWriter
type MockInteractionStore struct {
	mock.Mock
}

func (m *MockInteractionStore) ListByPerson(ctx context.Context, personID uuid.UUID, action *models.ActionType) ([]models.Interaction, error) {
	args := m.Called(ctx, personID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Interaction), args.Error(1)
}

func (m *MockInteractionStore) ListCoVisitors(ctx context.Context, locationID uuid.UUID, action models.ActionType, exclude uuid.UUID, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, locationID, action, exclude, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockInteractionStore) PersonExists(ctx context.Context, personID uuid.UUID) (bool, error) {
	args := m.Called(ctx, personID)
	return args.Bool(0), args.Error(1)
}

func (m *MockInteractionStore) UpsertInteraction(ctx context.Context, personID, locationID uuid.UUID, action models.ActionType, description *string) (*models.Interaction, error) {
	args := m.Called(ctx, personID, locationID, action, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Interaction), args.Error(1)
}

// MockLocationRepo is a mock implementation of LocationReader
type MockLocationRepo struct {
	mock.Mock
}

func (m *MockLocationRepo) GetLocation(ctx context.Context, locationID uuid.UUID) (*models.LocationStats, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LocationStats), args.Error(1)
}

func (m *MockLocationRepo) ListCandidates(ctx context.Context, exclude []uuid.UUID) ([]models.LocationStats, error) {
	args := m.Called(ctx, exclude)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LocationStats), args.Error(1)
}

func (m *MockLocationRepo) ListPopular(ctx context.Context, limit int) ([]models.LocationStats, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LocationStats), args.Error(1)
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int { return &i }

func newLocation(id uuid.UUID, name string, rating *float64, ratingCount *int, tags ...string) models.LocationStats {
	return models.LocationStats{
		Location: models.Location{
			ID:          id,
			Name:        name,
			Tags:        models.NewTagSet(tags...),
			Rating:      rating,
			RatingCount: ratingCount,
		},
	}
}

func visited(personID, locationID uuid.UUID, tags ...string) models.Interaction {
	return models.Interaction{
		ID:           uuid.New(),
		PersonID:     personID,
		LocationID:   locationID,
		ActionType:   models.ActionVisited,
		LocationTags: models.NewTagSet(tags...),
	}
}

// orderedIDs returns n ids in ascending byte order.
func orderedIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i][15] = byte(i + 1)
	}
	return ids
}
