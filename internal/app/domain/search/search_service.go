package search

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-discovery/internal/pkg/cache"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	DefaultNamesLimit  = 10

	filterOptionsKey = "filters"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the public entry point for location search.
type Service interface {
	SearchLocations(ctx context.Context, query string, filters models.SearchFilters, opts models.SortOptions, limit, offset int) (*models.SearchResult, error)
	FuzzySearchNames(ctx context.Context, query string, limit int) ([]models.NameMatch, error)
	GetSearchFilters(ctx context.Context) (*models.SearchFilterOptions, error)
}

// LocationSearcher is the slice of the location repository search reads.
type LocationSearcher interface {
	SearchRows(ctx context.Context, criteria models.SearchCriteria) ([]models.LocationStats, error)
	FuzzySearchNames(ctx context.Context, query string, limit int) ([]models.NameMatch, error)
	FilterOptions(ctx context.Context) (*models.SearchFilterOptions, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   LocationSearcher
	ranker *SearchRanker
	cache  *cache.CacheManager
}

// NewService builds the search facade. cacheManager may be nil.
func NewService(repo LocationSearcher, ranker *SearchRanker, cacheManager *cache.CacheManager, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		ranker: ranker,
		cache:  cacheManager,
	}
}

func validateSearch(filters models.SearchFilters, opts *models.SortOptions, limit, offset int) (Page, error) {
	if r := filters.MinRating; r != nil && (math.IsNaN(*r) || *r < 0 || *r > 5) {
		return Page{}, fmt.Errorf("min rating %.2f outside [0, 5]: %w", *r, models.ErrValidation)
	}
	if offset < 0 {
		return Page{}, fmt.Errorf("offset %d is negative: %w", offset, models.ErrValidation)
	}
	switch opts.SortBy {
	case "":
		opts.SortBy = models.SortByRelevance
	case models.SortByRelevance, models.SortByRating, models.SortByPopularity, models.SortByName:
	default:
		return Page{}, fmt.Errorf("unknown sort %q: %w", opts.SortBy, models.ErrValidation)
	}
	switch opts.SortOrder {
	case "", models.SortAsc, models.SortDesc:
	default:
		return Page{}, fmt.Errorf("unknown sort order %q: %w", opts.SortOrder, models.ErrValidation)
	}

	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return Page{Limit: min(limit, MaxSearchLimit), Offset: offset}, nil
}

func (s *ServiceImpl) SearchLocations(ctx context.Context, query string, filters models.SearchFilters, opts models.SortOptions, limit, offset int) (*models.SearchResult, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "SearchLocations", trace.WithAttributes(
		attribute.String("search.query", query),
		attribute.String("search.sort_by", string(opts.SortBy)),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "SearchLocations"), zap.String("query", query))

	page, err := validateSearch(filters, &opts, limit, offset)
	if err != nil {
		metrics.CountRequest(ctx, metrics.Get().SearchRequestsTotal, "locations", err)
		l.Warn("Rejected search request", zap.Error(err))
		span.SetStatus(codes.Error, "Invalid search request")
		return nil, err
	}
	l.Debug("Searching locations", zap.Int("limit", page.Limit), zap.Int("offset", page.Offset))

	query = strings.TrimSpace(query)
	rows, err := s.repo.SearchRows(ctx, models.SearchCriteria{Query: query, Filters: filters})
	metrics.CountRequest(ctx, metrics.Get().SearchRequestsTotal, "locations", err)
	if err != nil {
		l.Error("Failed to search locations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to search locations")
		return nil, fmt.Errorf("error searching locations: %w", err)
	}

	result := s.ranker.Rank(rows, query, filters, opts, page)

	l.Info("Locations searched", zap.Int("total", result.Total), zap.Int("returned", len(result.Locations)))
	span.SetAttributes(attribute.Int("search.total", result.Total))
	span.SetStatus(codes.Ok, "Locations searched")
	return &result, nil
}

// FuzzySearchNames returns name suggestions by trigram similarity. A blank query
// returns no suggestions.
func (s *ServiceImpl) FuzzySearchNames(ctx context.Context, query string, limit int) ([]models.NameMatch, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "FuzzySearchNames", trace.WithAttributes(
		attribute.String("search.query", query),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "FuzzySearchNames"), zap.String("query", query))

	query = strings.TrimSpace(query)
	if query == "" {
		span.SetStatus(codes.Ok, "Blank query")
		return []models.NameMatch{}, nil
	}
	if limit <= 0 {
		limit = DefaultNamesLimit
	}
	limit = min(limit, MaxSearchLimit)

	matches, err := s.repo.FuzzySearchNames(ctx, query, limit)
	metrics.CountRequest(ctx, metrics.Get().SearchRequestsTotal, "names", err)
	if err != nil {
		l.Error("Failed to search names", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to search names")
		return nil, fmt.Errorf("error searching names: %w", err)
	}
	if matches == nil {
		matches = []models.NameMatch{}
	}

	l.Debug("Names matched", zap.Int("count", len(matches)))
	span.SetStatus(codes.Ok, "Names matched")
	return matches, nil
}

func (s *ServiceImpl) GetSearchFilters(ctx context.Context) (*models.SearchFilterOptions, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "GetSearchFilters")
	defer span.End()

	l := s.logger.With(zap.String("method", "GetSearchFilters"))

	if s.cache != nil {
		cached, ok := s.cache.FilterOptions.Get(filterOptionsKey)
		metrics.CountCacheLookup(ctx, s.cache.FilterOptions.Name(), ok)
		if ok {
			span.SetStatus(codes.Ok, "Filters cached")
			return &cached, nil
		}
	}

	opts, err := s.repo.FilterOptions(ctx)
	metrics.CountRequest(ctx, metrics.Get().SearchRequestsTotal, "filters", err)
	if err != nil {
		l.Error("Failed to load search filters", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load search filters")
		return nil, fmt.Errorf("error loading search filters: %w", err)
	}
	if s.cache != nil {
		s.cache.FilterOptions.Set(filterOptionsKey, *opts)
	}

	l.Info("Search filters loaded",
		zap.Int("types", len(opts.Types)),
		zap.Int("statuses", len(opts.BusinessStatuses)))
	span.SetStatus(codes.Ok, "Search filters loaded")
	return opts, nil
}
