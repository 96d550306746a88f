package recommendation

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

func newTestRanker(store *MockInteractionStore, locations *MockLocationRepo) *RecommendationRanker {
	logger := zap.NewNop()
	engine := NewSimilarityEngine(store, DefaultSimilarityOptions(), logger)
	return NewRecommendationRanker(store, locations, NewPreferenceAnalyzer(), engine, logger)
}

func TestRecommendScenario(t *testing.T) {
	ctx := context.Background()
	person := uuid.New()
	candidate := newLocation(uuid.New(), "Tasca do Chico", floatPtr(4.8), intPtr(120), "restaurant")
	history := []models.Interaction{
		visited(person, uuid.New(), "restaurant"),
		visited(person, uuid.New(), "restaurant"),
		visited(person, uuid.New(), "restaurant"),
	}

	store := new(MockInteractionStore)
	locations := new(MockLocationRepo)
	store.On("ListByPerson", mock.Anything, person, (*models.ActionType)(nil)).Return(history, nil)
	locations.On("ListCandidates", mock.Anything, mock.MatchedBy(func(ids []uuid.UUID) bool { return len(ids) == 3 })).
		Return([]models.LocationStats{candidate}, nil)
	store.On("ListCoVisitors", mock.Anything, candidate.ID, models.ActionVisited, person, DefaultCoVisitorSample).
		Return([]uuid.UUID{}, nil)

	ranked, err := newTestRanker(store, locations).Recommend(ctx, person, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	got := ranked[0]
	assert.Equal(t, 18.0, got.Breakdown.Tag)
	assert.InDelta(t, 28.8, got.Breakdown.Rating, 1e-9)
	assert.InDelta(t, math.Log10(121)*5, got.Breakdown.Popularity, 1e-9)
	assert.Zero(t, got.Breakdown.Collaborative)
	assert.InDelta(t, 57.26, got.Score, 0.1)
	assert.Equal(t, "matches your interest in restaurant", got.Reason)
	assert.Equal(t, []string{"restaurant"}, got.MatchedTags)
	store.AssertExpectations(t)
	locations.AssertExpectations(t)
}

func TestRecommendExcludesVisited(t *testing.T) {
	ctx := context.Background()
	person := uuid.New()
	seen := newLocation(uuid.New(), "Seen", floatPtr(5), intPtr(1000), "bar")
	fresh := newLocation(uuid.New(), "Fresh", floatPtr(3), intPtr(2), "bar")

	store := new(MockInteractionStore)
	locations := new(MockLocationRepo)
	store.On("ListByPerson", mock.Anything, person, (*models.ActionType)(nil)).
		Return([]models.Interaction{visited(person, seen.ID, "bar")}, nil)
	// A store that ignores the exclusion list still must not leak visited places.
	locations.On("ListCandidates", mock.Anything, []uuid.UUID{seen.ID}).
		Return([]models.LocationStats{seen, fresh}, nil)
	store.On("ListCoVisitors", mock.Anything, mock.Anything, models.ActionVisited, person, DefaultCoVisitorSample).
		Return([]uuid.UUID{}, nil)

	ranked, err := newTestRanker(store, locations).Recommend(ctx, person, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, fresh.ID, ranked[0].Location.ID)
}

func TestRecommendOrderingAndBounds(t *testing.T) {
	ctx := context.Background()
	person := uuid.New()
	ids := orderedIDs(5)

	candidates := []models.LocationStats{
		newLocation(ids[4], "Loud", floatPtr(5), intPtr(1_000_000), "bar", "club", "music", "restaurant"),
		newLocation(ids[3], "Tie B", floatPtr(4), intPtr(10)),
		newLocation(ids[1], "Tie A", floatPtr(4), intPtr(10)),
		newLocation(ids[2], "Unrated", nil, nil),
		newLocation(ids[0], "Low", floatPtr(1), nil),
	}
	history := []models.Interaction{
		visited(person, uuid.New(), "bar", "club", "music", "restaurant"),
		visited(person, uuid.New(), "bar", "club", "music", "restaurant"),
	}

	store := new(MockInteractionStore)
	locations := new(MockLocationRepo)
	store.On("ListByPerson", mock.Anything, person, (*models.ActionType)(nil)).Return(history, nil)
	locations.On("ListCandidates", mock.Anything, mock.Anything).Return(candidates, nil)
	store.On("ListCoVisitors", mock.Anything, mock.Anything, models.ActionVisited, person, DefaultCoVisitorSample).
		Return([]uuid.UUID{}, nil)

	ranked, err := newTestRanker(store, locations).Recommend(ctx, person, 4)
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	assert.Equal(t, ids[4], ranked[0].Location.ID)
	assert.Equal(t, ids[1], ranked[1].Location.ID, "equal scores fall back to id order")
	assert.Equal(t, ids[3], ranked[2].Location.ID)
	assert.Equal(t, ids[0], ranked[3].Location.ID)
	for i, r := range ranked {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, MaxScore)
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Score, r.Score)
		}
	}
	assert.Equal(t, TagScoreCap, ranked[0].Breakdown.Tag)
}

func TestRecommendPopularFallback(t *testing.T) {
	ctx := context.Background()
	person := uuid.New()
	popular := []models.LocationStats{
		newLocation(uuid.New(), "Busiest", floatPtr(4.1), intPtr(50)),
		newLocation(uuid.New(), "Second", floatPtr(4.9), intPtr(80)),
	}
	popular[0].VisitCount = 30
	popular[1].VisitCount = 12

	store := new(MockInteractionStore)
	locations := new(MockLocationRepo)
	store.On("ListByPerson", mock.Anything, person, (*models.ActionType)(nil)).Return([]models.Interaction{}, nil)
	store.On("PersonExists", mock.Anything, person).Return(true, nil)
	locations.On("ListPopular", mock.Anything, 2).Return(popular, nil)

	ranked, err := newTestRanker(store, locations).Recommend(ctx, person, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	for i, r := range ranked {
		assert.Equal(t, popular[i].ID, r.Location.ID)
		assert.Equal(t, PopularFallbackScore, r.Score)
		assert.Equal(t, ReasonPopular, r.Reason)
	}
	locations.AssertNotCalled(t, "ListCandidates", mock.Anything, mock.Anything)
}

func TestRecommendErrors(t *testing.T) {
	ctx := context.Background()
	person := uuid.New()

	t.Run("missing person id", func(t *testing.T) {
		_, err := newTestRanker(new(MockInteractionStore), new(MockLocationRepo)).Recommend(ctx, uuid.Nil, 10)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("unknown person", func(t *testing.T) {
		store := new(MockInteractionStore)
		store.On("ListByPerson", mock.Anything, person, (*models.ActionType)(nil)).Return([]models.Interaction{}, nil)
		store.On("PersonExists", mock.Anything, person).Return(false, nil)

		_, err := newTestRanker(store, new(MockLocationRepo)).Recommend(ctx, person, 10)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("candidate listing failure is fatal", func(t *testing.T) {
		store := new(MockInteractionStore)
		locations := new(MockLocationRepo)
		store.On("ListByPerson", mock.Anything, person, (*models.ActionType)(nil)).
			Return([]models.Interaction{visited(person, uuid.New(), "bar")}, nil)
		locations.On("ListCandidates", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("listing: %w", models.ErrDataAccess))

		_, err := newTestRanker(store, locations).Recommend(ctx, person, 10)
		assert.ErrorIs(t, err, models.ErrDataAccess)
	})

	t.Run("interaction load failure is fatal", func(t *testing.T) {
		store := new(MockInteractionStore)
		store.On("ListByPerson", mock.Anything, person, (*models.ActionType)(nil)).
			Return(nil, fmt.Errorf("listing: %w", models.ErrDataAccess))

		_, err := newTestRanker(store, new(MockLocationRepo)).Recommend(ctx, person, 10)
		assert.ErrorIs(t, err, models.ErrDataAccess)
	})
}

func TestSimilar(t *testing.T) {
	ctx := context.Background()
	ids := orderedIDs(4)
	target := newLocation(ids[0], "Ocean Grill", floatPtr(4.5), intPtr(300), "restaurant", "seafood")
	twin := newLocation(ids[1], "Harbour Fish", floatPtr(4.0), intPtr(3), "restaurant", "seafood")
	partial := newLocation(ids[2], "Corner Diner", floatPtr(4.0), intPtr(3), "restaurant")
	unrelated := newLocation(ids[3], "Old Fort", floatPtr(4.6), intPtr(900), "museum")

	locations := new(MockLocationRepo)
	locations.On("GetLocation", mock.Anything, target.ID).Return(&target, nil)
	locations.On("ListCandidates", mock.Anything, []uuid.UUID{target.ID}).
		Return([]models.LocationStats{unrelated, partial, twin}, nil)

	ranked, err := newTestRanker(new(MockInteractionStore), locations).Similar(ctx, target.ID, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, twin.ID, ranked[0].Location.ID)
	assert.Equal(t, "shares tags restaurant, seafood", ranked[0].Reason)
	assert.Equal(t, partial.ID, ranked[1].Location.ID)
	assert.Equal(t, unrelated.ID, ranked[2].Location.ID)
	assert.Equal(t, ReasonHighRating, ranked[2].Reason)
	for _, r := range ranked {
		assert.Zero(t, r.Breakdown.Collaborative)
		assert.Zero(t, r.Breakdown.Popularity)
		assert.NotEqual(t, target.ID, r.Location.ID)
	}
}

func TestSimilarUnknownLocation(t *testing.T) {
	missing := uuid.New()
	locations := new(MockLocationRepo)
	locations.On("GetLocation", mock.Anything, missing).Return(nil, fmt.Errorf("location: %w", models.ErrNotFound))

	_, err := newTestRanker(new(MockInteractionStore), locations).Similar(context.Background(), missing, 5)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
