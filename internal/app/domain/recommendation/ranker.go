package recommendation

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// InteractionReader is the slice of the interaction store the ranker reads.
type InteractionReader interface {
	CoVisitorStore
	PersonExists(ctx context.Context, personID uuid.UUID) (bool, error)
}

// LocationReader is the slice of the location repository the ranker reads.
type LocationReader interface {
	GetLocation(ctx context.Context, locationID uuid.UUID) (*models.LocationStats, error)
	ListCandidates(ctx context.Context, exclude []uuid.UUID) ([]models.LocationStats, error)
	ListPopular(ctx context.Context, limit int) ([]models.LocationStats, error)
}

// Collaborator supplies the collaborative term for a candidate.
type Collaborator interface {
	CollaborativeScore(ctx context.Context, personID, candidateID uuid.UUID, personVisited map[uuid.UUID]struct{}) (float64, error)
}

// RecommendationRanker scores candidate locations for a person.
type RecommendationRanker struct {
	logger       *zap.Logger
	interactions InteractionReader
	locations    LocationReader
	analyzer     *PreferenceAnalyzer
	similarity   Collaborator
}

func NewRecommendationRanker(interactions InteractionReader, locations LocationReader, analyzer *PreferenceAnalyzer, similarity Collaborator, logger *zap.Logger) *RecommendationRanker {
	return &RecommendationRanker{
		logger:       logger,
		interactions: interactions,
		locations:    locations,
		analyzer:     analyzer,
		similarity:   similarity,
	}
}

// Recommend returns up to limit un-visited locations ranked by score. A person
// without interactions gets the popularity fallback.
func (r *RecommendationRanker) Recommend(ctx context.Context, personID uuid.UUID, limit int) ([]models.RankedLocation, error) {
	ctx, span := otel.Tracer("RecommendationRanker").Start(ctx, "Recommend", trace.WithAttributes(
		attribute.String("person.id", personID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "Recommend"), zap.String("personID", personID.String()))

	if personID == uuid.Nil {
		span.SetStatus(codes.Error, "Missing person id")
		return nil, fmt.Errorf("person id is required: %w", models.ErrValidation)
	}
	if limit <= 0 {
		return []models.RankedLocation{}, nil
	}

	history, err := r.interactions.ListByPerson(ctx, personID, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load interactions")
		return nil, fmt.Errorf("loading interactions: %w", err)
	}

	if len(history) == 0 {
		exists, err := r.interactions.PersonExists(ctx, personID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("checking person: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "Person not found")
			return nil, fmt.Errorf("person %s: %w", personID, models.ErrNotFound)
		}
		l.Debug("No interactions, using popular fallback")
		span.AddEvent("popular_fallback")
		return r.Popular(ctx, limit)
	}

	prefs := r.analyzer.Analyze(history)
	exclude := make([]uuid.UUID, 0, len(prefs.VisitedSet))
	for id := range prefs.VisitedSet {
		exclude = append(exclude, id)
	}
	slices.SortFunc(exclude, compareIDs)

	candidates, err := r.locations.ListCandidates(ctx, exclude)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list candidates")
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	ranked := make([]models.RankedLocation, 0, len(candidates))
	for _, candidate := range candidates {
		// The store already excludes them; this keeps the guarantee independent of it.
		if prefs.HasVisited(candidate.ID) {
			continue
		}
		scored, err := r.scoreCandidate(ctx, personID, candidate, prefs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Scoring aborted")
			return nil, err
		}
		ranked = append(ranked, scored)
	}

	sortRanked(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	l.Info("Recommendations ranked",
		zap.Int("interactions", len(history)),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(ranked)))
	span.SetAttributes(attribute.Int("candidates.count", len(candidates)))
	span.SetStatus(codes.Ok, "Recommendations ranked")
	return ranked, nil
}

// scoreCandidate computes the four bounded components for one candidate.
func (r *RecommendationRanker) scoreCandidate(ctx context.Context, personID uuid.UUID, candidate models.LocationStats, prefs models.PreferenceVector) (models.RankedLocation, error) {
	tagScore, matched := TagScore(candidate.Tags, prefs.TagWeight)
	breakdown := models.ScoreBreakdown{
		Tag:        tagScore,
		Rating:     RatingScore(candidate.Rating),
		Popularity: PopularityScore(candidate.RatingCount),
	}

	collab, err := r.similarity.CollaborativeScore(ctx, personID, candidate.ID, prefs.VisitedSet)
	if err != nil {
		return models.RankedLocation{}, fmt.Errorf("collaborative score for %s: %w", candidate.ID, err)
	}
	breakdown.Collaborative = collab

	return models.RankedLocation{
		Location:    candidate,
		Score:       TotalScore(breakdown),
		Breakdown:   breakdown,
		Reason:      Reason(breakdown, matched, candidate.Location),
		MatchedTags: matched,
	}, nil
}

// Popular returns rated locations by (visit count desc, rating desc), each with
// PopularFallbackScore and ReasonPopular.
func (r *RecommendationRanker) Popular(ctx context.Context, limit int) ([]models.RankedLocation, error) {
	popular, err := r.locations.ListPopular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing popular locations: %w", err)
	}
	ranked := make([]models.RankedLocation, 0, len(popular))
	for _, loc := range popular {
		ranked = append(ranked, models.RankedLocation{
			Location: loc,
			Score:    PopularFallbackScore,
			Reason:   ReasonPopular,
		})
	}
	return ranked, nil
}

// Similar ranks other locations by tag and rating similarity to locationID.
// There is no collaborative term.
func (r *RecommendationRanker) Similar(ctx context.Context, locationID uuid.UUID, limit int) ([]models.RankedLocation, error) {
	ctx, span := otel.Tracer("RecommendationRanker").Start(ctx, "Similar", trace.WithAttributes(
		attribute.String("location.id", locationID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	target, err := r.locations.GetLocation(ctx, locationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load target")
		return nil, fmt.Errorf("loading location: %w", err)
	}
	if limit <= 0 {
		return []models.RankedLocation{}, nil
	}

	candidates, err := r.locations.ListCandidates(ctx, []uuid.UUID{target.ID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list candidates")
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	weights := tagPreferences(target.Tags)
	ranked := make([]models.RankedLocation, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == target.ID {
			continue
		}
		tagScore, shared := TagScore(candidate.Tags, weights)
		breakdown := models.ScoreBreakdown{
			Tag:    tagScore,
			Rating: RatingScore(candidate.Rating),
		}
		ranked = append(ranked, models.RankedLocation{
			Location:    candidate,
			Score:       TotalScore(breakdown),
			Breakdown:   breakdown,
			Reason:      similarReason(breakdown, shared, candidate.Location),
			MatchedTags: shared,
		})
	}

	sortRanked(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	span.SetStatus(codes.Ok, "Similar locations ranked")
	return ranked, nil
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// sortRanked orders by score descending; equal scores fall back to location id ascending.
func sortRanked(ranked []models.RankedLocation) {
	slices.SortFunc(ranked, func(a, b models.RankedLocation) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return compareIDs(a.Location.ID, b.Location.ID)
		}
	})
}
