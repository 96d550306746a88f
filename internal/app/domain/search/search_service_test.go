package search

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/pkg/cache"
)

// MockLocationSearcher is a mock implementation of LocationSearcher
type MockLocationSearcher struct {
	mock.Mock
}

func (m *MockLocationSearcher) SearchRows(ctx context.Context, criteria models.SearchCriteria) ([]models.LocationStats, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LocationStats), args.Error(1)
}

func (m *MockLocationSearcher) FuzzySearchNames(ctx context.Context, query string, limit int) ([]models.NameMatch, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NameMatch), args.Error(1)
}

func (m *MockLocationSearcher) FilterOptions(ctx context.Context) (*models.SearchFilterOptions, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SearchFilterOptions), args.Error(1)
}

func newTestService(repo *MockLocationSearcher, cm *cache.CacheManager) *ServiceImpl {
	return NewService(repo, NewSearchRanker(), cm, zap.NewNop())
}

func TestSearchLocationsValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		filters models.SearchFilters
		opts    models.SortOptions
		offset  int
	}{
		{"min rating above five", models.SearchFilters{MinRating: floatPtr(5.5)}, models.SortOptions{}, 0},
		{"min rating below zero", models.SearchFilters{MinRating: floatPtr(-1)}, models.SortOptions{}, 0},
		{"min rating not a number", models.SearchFilters{MinRating: floatPtr(math.NaN())}, models.SortOptions{}, 0},
		{"negative offset", models.SearchFilters{}, models.SortOptions{}, -1},
		{"unknown sort", models.SearchFilters{}, models.SortOptions{SortBy: "distance"}, 0},
		{"unknown order", models.SearchFilters{}, models.SortOptions{SortBy: models.SortByName, SortOrder: "sideways"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockLocationSearcher)
			_, err := newTestService(repo, nil).SearchLocations(ctx, "", tt.filters, tt.opts, 20, tt.offset)
			assert.ErrorIs(t, err, models.ErrValidation)
			repo.AssertNotCalled(t, "SearchRows", mock.Anything, mock.Anything)
		})
	}
}

func TestSearchLocations(t *testing.T) {
	ctx := context.Background()

	t.Run("passes trimmed criteria and ranks rows", func(t *testing.T) {
		rows := []models.LocationStats{
			place(1, "The Ocean View Cafe", "", floatPtr(4.9)),
			place(2, "Ocean View", "", floatPtr(3.0)),
		}
		minRating := floatPtr(2.5)
		repo := new(MockLocationSearcher)
		repo.On("SearchRows", mock.Anything, models.SearchCriteria{
			Query:   "Ocean View",
			Filters: models.SearchFilters{MinRating: minRating},
		}).Return(rows, nil)

		result, err := newTestService(repo, nil).SearchLocations(ctx, "  Ocean View ", models.SearchFilters{MinRating: minRating}, models.SortOptions{}, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ocean View", "The Ocean View Cafe"}, names(result.Locations))
		assert.Equal(t, 2, result.Total)
		repo.AssertExpectations(t)
	})

	t.Run("limit is capped", func(t *testing.T) {
		rows := make([]models.LocationStats, 150)
		for i := range rows {
			rows[i] = place(i, fmt.Sprintf("Spot %03d", i), "", nil)
		}
		repo := new(MockLocationSearcher)
		repo.On("SearchRows", mock.Anything, mock.Anything).Return(rows, nil)

		result, err := newTestService(repo, nil).SearchLocations(ctx, "", models.SearchFilters{}, models.SortOptions{}, 500, 0)
		require.NoError(t, err)
		assert.Len(t, result.Locations, MaxSearchLimit)
		assert.True(t, result.HasMore)
	})

	t.Run("default limit", func(t *testing.T) {
		rows := make([]models.LocationStats, 57)
		for i := range rows {
			rows[i] = place(i, fmt.Sprintf("Spot %02d", i), "", nil)
		}
		repo := new(MockLocationSearcher)
		repo.On("SearchRows", mock.Anything, mock.Anything).Return(rows, nil)

		result, err := newTestService(repo, nil).SearchLocations(ctx, "", models.SearchFilters{}, models.SortOptions{}, 0, 40)
		require.NoError(t, err)
		assert.Len(t, result.Locations, 17)
		assert.False(t, result.HasMore)
		assert.Equal(t, 57, result.Total)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		repo := new(MockLocationSearcher)
		repo.On("SearchRows", mock.Anything, mock.Anything).Return([]models.LocationStats{}, nil)

		result, err := newTestService(repo, nil).SearchLocations(ctx, "nowhere", models.SearchFilters{}, models.SortOptions{}, 20, 0)
		require.NoError(t, err)
		assert.Empty(t, result.Locations)
		assert.NotNil(t, result.Locations)
		assert.Zero(t, result.Total)
		assert.False(t, result.HasMore)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		repo := new(MockLocationSearcher)
		repo.On("SearchRows", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("query: %w", models.ErrDataAccess))

		_, err := newTestService(repo, nil).SearchLocations(ctx, "x", models.SearchFilters{}, models.SortOptions{}, 20, 0)
		assert.ErrorIs(t, err, models.ErrDataAccess)
	})
}

func TestFuzzySearchNames(t *testing.T) {
	ctx := context.Background()

	t.Run("blank query returns nothing", func(t *testing.T) {
		repo := new(MockLocationSearcher)
		matches, err := newTestService(repo, nil).FuzzySearchNames(ctx, "   ", 5)
		require.NoError(t, err)
		assert.Empty(t, matches)
		repo.AssertNotCalled(t, "FuzzySearchNames", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("default limit", func(t *testing.T) {
		want := []models.NameMatch{{ID: idAt(1), Name: "Lisbon Oceanarium", Tags: models.NewTagSet("aquarium")}}
		repo := new(MockLocationSearcher)
		repo.On("FuzzySearchNames", mock.Anything, "oceanarim", DefaultNamesLimit).Return(want, nil)

		matches, err := newTestService(repo, nil).FuzzySearchNames(ctx, "oceanarim", 0)
		require.NoError(t, err)
		assert.Equal(t, want, matches)
		repo.AssertExpectations(t)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		repo := new(MockLocationSearcher)
		repo.On("FuzzySearchNames", mock.Anything, "x", 3).Return(nil, fmt.Errorf("query: %w", models.ErrDataAccess))

		_, err := newTestService(repo, nil).FuzzySearchNames(ctx, "x", 3)
		assert.ErrorIs(t, err, models.ErrDataAccess)
	})
}

func TestGetSearchFiltersCached(t *testing.T) {
	ctx := context.Background()
	opts := &models.SearchFilterOptions{
		Types:            []string{"bar", "cafe"},
		RatingRange:      models.RatingRange{Min: 1.5, Max: 4.9},
		BusinessStatuses: []models.BusinessStatus{models.BusinessStatusOperational},
	}
	repo := new(MockLocationSearcher)
	repo.On("FilterOptions", mock.Anything).Return(opts, nil).Once()

	cm := cache.NewCacheManager(time.Minute, zap.NewNop())
	svc := newTestService(repo, cm)

	first, err := svc.GetSearchFilters(ctx)
	require.NoError(t, err)
	second, err := svc.GetSearchFilters(ctx)
	require.NoError(t, err)

	assert.Equal(t, opts, first)
	assert.Equal(t, opts, second)
	repo.AssertNumberOfCalls(t, "FilterOptions", 1)
}
