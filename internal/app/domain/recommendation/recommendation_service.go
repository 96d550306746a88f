package recommendation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
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
	DefaultRecommendationLimit = 10
	DefaultSimilarLimit        = 5
	DefaultPopularLimit        = 10
)

var _ Service = (*ServiceImpl)(nil)

// Service is the public entry point for recommendations.
type Service interface {
	GetPersonalRecommendations(ctx context.Context, personID uuid.UUID, limit int) ([]models.RankedLocation, error)
	GetSimilarLocations(ctx context.Context, locationID uuid.UUID, limit int) ([]models.RankedLocation, error)
	GetPopularLocations(ctx context.Context, limit int) ([]models.LocationStats, error)
	// RecordInteraction stores a person's action on a location, replacing the
	// description of an identical earlier action.
	RecordInteraction(ctx context.Context, personID, locationID uuid.UUID, action models.ActionType, description *string) (*models.Interaction, error)
}

// InteractionWriter is the write path of the interaction store.
type InteractionWriter interface {
	UpsertInteraction(ctx context.Context, personID, locationID uuid.UUID, action models.ActionType, description *string) (*models.Interaction, error)
}

type ServiceImpl struct {
	logger    *zap.Logger
	ranker    *RecommendationRanker
	locations LocationReader
	writer    InteractionWriter
	cache     *cache.CacheManager
}

// NewService wires the ranker with its collaborators. cacheManager may be nil.
func NewService(ranker *RecommendationRanker, locations LocationReader, writer InteractionWriter, cacheManager *cache.CacheManager, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		ranker:    ranker,
		locations: locations,
		writer:    writer,
		cache:     cacheManager,
	}
}

func (s *ServiceImpl) GetPersonalRecommendations(ctx context.Context, personID uuid.UUID, limit int) ([]models.RankedLocation, error) {
	ctx, span := otel.Tracer("RecommendationService").Start(ctx, "GetPersonalRecommendations", trace.WithAttributes(
		attribute.String("person.id", personID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetPersonalRecommendations"), zap.String("personID", personID.String()))
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	l.Debug("Fetching personal recommendations", zap.Int("limit", limit))

	ranked, err := s.ranker.Recommend(ctx, personID, limit)
	metrics.CountRequest(ctx, metrics.Get().RecommendationRequestsTotal, "personal", err)
	if err != nil {
		l.Error("Failed to rank recommendations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to rank recommendations")
		return nil, fmt.Errorf("error getting recommendations: %w", err)
	}

	l.Info("Personal recommendations fetched", zap.Int("count", len(ranked)))
	span.SetStatus(codes.Ok, "Personal recommendations fetched")
	return ranked, nil
}

func (s *ServiceImpl) GetSimilarLocations(ctx context.Context, locationID uuid.UUID, limit int) ([]models.RankedLocation, error) {
	ctx, span := otel.Tracer("RecommendationService").Start(ctx, "GetSimilarLocations", trace.WithAttributes(
		attribute.String("location.id", locationID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetSimilarLocations"), zap.String("locationID", locationID.String()))
	if locationID == uuid.Nil {
		err := fmt.Errorf("location id is required: %w", models.ErrValidation)
		metrics.CountRequest(ctx, metrics.Get().RecommendationRequestsTotal, "similar", err)
		span.SetStatus(codes.Error, "Missing location id")
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	ranked, err := s.ranker.Similar(ctx, locationID, limit)
	metrics.CountRequest(ctx, metrics.Get().RecommendationRequestsTotal, "similar", err)
	if err != nil {
		l.Error("Failed to rank similar locations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to rank similar locations")
		return nil, fmt.Errorf("error getting similar locations: %w", err)
	}

	l.Info("Similar locations fetched", zap.Int("count", len(ranked)))
	span.SetStatus(codes.Ok, "Similar locations fetched")
	return ranked, nil
}

func (s *ServiceImpl) GetPopularLocations(ctx context.Context, limit int) ([]models.LocationStats, error) {
	ctx, span := otel.Tracer("RecommendationService").Start(ctx, "GetPopularLocations")
	defer span.End()

	l := s.logger.With(zap.String("method", "GetPopularLocations"))
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	span.SetAttributes(attribute.Int("limit", limit))

	key, keyErr := cache.NewCacheKeyBuilder().Add("popular_limit", limit).Build()
	useCache := s.cache != nil && keyErr == nil
	if useCache {
		cached, ok := s.cache.Popular.Get(key)
		metrics.CountCacheLookup(ctx, s.cache.Popular.Name(), ok)
		if ok {
			l.Debug("Popular locations served from cache", zap.Int("count", len(cached)))
			span.SetStatus(codes.Ok, "Popular locations cached")
			return cached, nil
		}
	}

	popular, err := s.locations.ListPopular(ctx, limit)
	metrics.CountRequest(ctx, metrics.Get().RecommendationRequestsTotal, "popular", err)
	if err != nil {
		l.Error("Failed to list popular locations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list popular locations")
		return nil, fmt.Errorf("error getting popular locations: %w", err)
	}
	if useCache {
		s.cache.Popular.Set(key, popular)
	}

	l.Info("Popular locations fetched", zap.Int("count", len(popular)))
	span.SetStatus(codes.Ok, "Popular locations fetched")
	return popular, nil
}

func (s *ServiceImpl) RecordInteraction(ctx context.Context, personID, locationID uuid.UUID, action models.ActionType, description *string) (*models.Interaction, error) {
	ctx, span := otel.Tracer("RecommendationService").Start(ctx, "RecordInteraction", trace.WithAttributes(
		attribute.String("person.id", personID.String()),
		attribute.String("location.id", locationID.String()),
		attribute.String("action", action.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "RecordInteraction"),
		zap.String("personID", personID.String()),
		zap.String("locationID", locationID.String()),
		zap.String("action", action.String()))

	interaction, err := s.writer.UpsertInteraction(ctx, personID, locationID, action, description)
	if err != nil {
		l.Error("Failed to record interaction", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record interaction")
		return nil, fmt.Errorf("error recording interaction: %w", err)
	}
	if s.cache != nil && action == models.ActionVisited {
		// Visit counts drive the popular ordering.
		s.cache.Popular.Clear()
	}

	l.Info("Interaction recorded", zap.String("interactionID", interaction.ID.String()))
	span.SetStatus(codes.Ok, "Interaction recorded")
	return interaction, nil
}
