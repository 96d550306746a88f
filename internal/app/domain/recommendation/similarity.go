package recommendation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
)

// CoVisitorStore is the slice of the interaction store the similarity engine reads.
type CoVisitorStore interface {
	ListByPerson(ctx context.Context, personID uuid.UUID, action *models.ActionType) ([]models.Interaction, error)
	ListCoVisitors(ctx context.Context, locationID uuid.UUID, action models.ActionType, exclude uuid.UUID, limit int) ([]uuid.UUID, error)
}

type visitedSet = map[uuid.UUID]struct{}

// Jaccard returns |a∩b| / |a∪b|, or 0 when both sets are empty.
func Jaccard[K comparable](a, b map[K]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for k := range small {
		if _, ok := large[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

type SimilarityOptions struct {
	// SampleSize caps the co-visitors consulted per candidate.
	SampleSize int
	// Concurrency caps parallel co-visitor reads per candidate.
	Concurrency int
	// BreakerFailures consecutive lookup failures within one call stop the
	// remaining reads of that call for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func DefaultSimilarityOptions() SimilarityOptions {
	return SimilarityOptions{
		SampleSize:      DefaultCoVisitorSample,
		Concurrency:     4,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// SimilarityEngine computes the collaborative signal from co-visitors' visited sets.
// It holds no state between calls.
type SimilarityEngine struct {
	logger *zap.Logger
	store  CoVisitorStore
	opts   SimilarityOptions
}

func NewSimilarityEngine(store CoVisitorStore, opts SimilarityOptions, logger *zap.Logger) *SimilarityEngine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.SampleSize < 0 {
		opts.SampleSize = 0
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = DefaultSimilarityOptions().BreakerFailures
	}
	return &SimilarityEngine{
		logger: logger,
		store:  store,
		opts:   opts,
	}
}

// newBreaker guards the co-visitor reads of a single CollaborativeScore call.
func (e *SimilarityEngine) newBreaker(l *zap.Logger) *gobreaker.CircuitBreaker[visitedSet] {
	failures := e.opts.BreakerFailures
	return gobreaker.NewCircuitBreaker[visitedSet](gobreaker.Settings{
		Name:    "covisitor-lookups",
		Timeout: e.opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("Co-visitor circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// CollaborativeScore averages the Jaccard similarity between personVisited and the
// visited sets of up to SampleSize co-visitors of candidateID, scaled into
// [0, CollaborativeScoreCap]. Co-visitor lookups that fail are skipped; only
// context cancellation is returned as an error.
func (e *SimilarityEngine) CollaborativeScore(ctx context.Context, personID, candidateID uuid.UUID, personVisited map[uuid.UUID]struct{}) (float64, error) {
	ctx, span := otel.Tracer("SimilarityEngine").Start(ctx, "CollaborativeScore", trace.WithAttributes(
		attribute.String("location.id", candidateID.String()),
		attribute.Int("covisitor.sample", e.opts.SampleSize),
	))
	defer span.End()

	l := e.logger.With(zap.String("method", "CollaborativeScore"), zap.String("candidateID", candidateID.String()))

	coVisitors, err := e.store.ListCoVisitors(ctx, candidateID, models.ActionVisited, personID, e.opts.SampleSize)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.RecordError(ctxErr)
			return 0, ctxErr
		}
		l.Warn("Co-visitor listing failed, collaborative term set to 0", zap.Error(err))
		metrics.Get().CoVisitorLookupFailuresTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Ok, "Co-visitor listing skipped")
		return 0, nil
	}
	if len(coVisitors) == 0 {
		span.SetStatus(codes.Ok, "No co-visitors")
		return 0, nil
	}

	breaker := e.newBreaker(l)
	similarities := make([]float64, len(coVisitors))
	succeeded := make([]bool, len(coVisitors))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for idx, coVisitor := range coVisitors {
		g.Go(func() error {
			theirs, err := breaker.Execute(func() (visitedSet, error) {
				interactions, err := e.store.ListByPerson(ctx, coVisitor, nil)
				if err != nil {
					return nil, err
				}
				return locationSet(interactions), nil
			})
			if err != nil {
				l.Warn("Skipping co-visitor", zap.String("coVisitorID", coVisitor.String()), zap.Error(err))
				metrics.Get().CoVisitorLookupFailuresTotal.Add(ctx, 1)
				return nil
			}
			similarities[idx] = Jaccard(personVisited, theirs)
			succeeded[idx] = true
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cancelled")
		return 0, err
	}

	var sum float64
	var n int
	for idx, ok := range succeeded {
		if ok {
			sum += similarities[idx]
			n++
		}
	}
	if n == 0 {
		span.SetStatus(codes.Ok, "All co-visitor lookups skipped")
		return 0, nil
	}

	score := CollaborativeScore(sum / float64(n))
	span.SetAttributes(
		attribute.Int("covisitor.count", len(coVisitors)),
		attribute.Int("covisitor.used", n),
		attribute.Float64("score.collaborative", score),
	)
	span.SetStatus(codes.Ok, "Collaborative score computed")
	return score, nil
}
