package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
	database "github.com/FACorreiaa/loci-discovery/internal/db"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository reads locations together with their interaction aggregates.
type Repository interface {
	GetLocation(ctx context.Context, locationID uuid.UUID) (*models.LocationStats, error)
	// ListCandidates returns every location whose id is not in exclude.
	ListCandidates(ctx context.Context, exclude []uuid.UUID) ([]models.LocationStats, error)
	// ListPopular returns rated locations ordered by visit count, then rating.
	ListPopular(ctx context.Context, limit int) ([]models.LocationStats, error)
	// SearchRows returns the locations matching the criteria, unordered and unpaged.
	SearchRows(ctx context.Context, criteria models.SearchCriteria) ([]models.LocationStats, error)
	FuzzySearchNames(ctx context.Context, query string, limit int) ([]models.NameMatch, error)
	FilterOptions(ctx context.Context) (*models.SearchFilterOptions, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var statsColumns = []string{
	"l.id", "l.name", "l.address", "l.summary", "l.latitude", "l.longitude",
	"l.tags", "l.rating", "l.rating_count", "l.business_status",
	"COUNT(ul.id) FILTER (WHERE ul.action_type = 'visited') AS visit_count",
	"COUNT(ul.id) FILTER (WHERE ul.action_type = 'want_to_visit') AS want_to_visit_count",
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.DBTX
}

func NewRepository(pgpool database.DBTX, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func statsQuery() sq.SelectBuilder {
	return psql.Select(statsColumns...).
		From("locations l").
		LeftJoin("user_locations ul ON ul.location_id = l.id")
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "locations"),
	}
	return otel.Tracer("LocationRepo").Start(ctx, name, trace.WithAttributes(append(base, attrs...)...))
}

func (r *RepositoryImpl) GetLocation(ctx context.Context, locationID uuid.UUID) (*models.LocationStats, error) {
	ctx, span := startSpan(ctx, "GetLocation", attribute.String("location.id", locationID.String()))
	defer span.End()

	if locationID == uuid.Nil {
		return nil, fmt.Errorf("location id is required: %w", models.ErrValidation)
	}

	query, args, err := statsQuery().
		Where(sq.Expr("l.id = ?", locationID)).
		GroupBy("l.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building location query: %w", err)
	}

	locations, err := r.queryStats(ctx, span, "GetLocation", query, args)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		span.SetStatus(codes.Error, "Location not found")
		return nil, fmt.Errorf("location %s: %w", locationID, models.ErrNotFound)
	}
	span.SetStatus(codes.Ok, "Location fetched")
	return &locations[0], nil
}

func (r *RepositoryImpl) ListCandidates(ctx context.Context, exclude []uuid.UUID) ([]models.LocationStats, error) {
	ctx, span := startSpan(ctx, "ListCandidates", attribute.Int("exclude.count", len(exclude)))
	defer span.End()

	builder := statsQuery()
	if len(exclude) > 0 {
		builder = builder.Where(sq.Expr("NOT (l.id = ANY(?))", exclude))
	}
	query, args, err := builder.GroupBy("l.id").OrderBy("l.id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building candidate query: %w", err)
	}

	locations, err := r.queryStats(ctx, span, "ListCandidates", query, args)
	if err != nil {
		return nil, err
	}
	span.SetStatus(codes.Ok, "Candidates fetched")
	return locations, nil
}

func (r *RepositoryImpl) ListPopular(ctx context.Context, limit int) ([]models.LocationStats, error) {
	ctx, span := startSpan(ctx, "ListPopular", attribute.Int("limit", limit))
	defer span.End()

	query, args, err := statsQuery().
		Where("l.rating IS NOT NULL").
		GroupBy("l.id").
		OrderBy("visit_count DESC", "l.rating DESC", "l.id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building popular query: %w", err)
	}

	locations, err := r.queryStats(ctx, span, "ListPopular", query, args)
	if err != nil {
		return nil, err
	}
	span.SetStatus(codes.Ok, "Popular locations fetched")
	return locations, nil
}

func (r *RepositoryImpl) SearchRows(ctx context.Context, criteria models.SearchCriteria) ([]models.LocationStats, error) {
	ctx, span := startSpan(ctx, "SearchRows",
		attribute.String("search.query", criteria.Query),
		attribute.Int("search.types", len(criteria.Filters.Types)),
	)
	defer span.End()

	builder := statsQuery()
	if q := strings.TrimSpace(criteria.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"l.name": pattern},
			sq.ILike{"l.address": pattern},
			sq.ILike{"COALESCE(l.summary, '')": pattern},
		})
	}
	if len(criteria.Filters.Types) > 0 {
		builder = builder.Where(sq.Expr(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(l.tags) AS t(tag) WHERE t.tag = ANY(?))",
			criteria.Filters.Types.Sorted(),
		))
	}
	if criteria.Filters.MinRating != nil {
		builder = builder.Where(sq.GtOrEq{"l.rating": *criteria.Filters.MinRating})
	}
	if criteria.Filters.BusinessStatus != nil {
		builder = builder.Where(sq.Eq{"l.business_status": string(*criteria.Filters.BusinessStatus)})
	}

	query, args, err := builder.GroupBy("l.id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building search query: %w", err)
	}

	locations, err := r.queryStats(ctx, span, "SearchRows", query, args)
	if err != nil {
		return nil, err
	}
	span.SetStatus(codes.Ok, "Search rows fetched")
	return locations, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *RepositoryImpl) queryStats(ctx context.Context, span trace.Span, method, query string, args []any) ([]models.LocationStats, error) {
	l := r.logger.With(zap.String("method", method))
	l.Debug("Executing location query", zap.String("query", query))

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveQuery(ctx, "SELECT", "locations", start, err)
		l.Error("Failed to query locations", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error querying locations: %w: %w", models.ErrDataAccess, err)
	}
	defer rows.Close()

	locations, err := scanStats(rows)
	metrics.ObserveQuery(ctx, "SELECT", "locations", start, err)
	if err != nil {
		l.Error("Failed to read location rows", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB scan failed")
		return nil, fmt.Errorf("database error reading locations: %w: %w", models.ErrDataAccess, err)
	}

	l.Debug("Locations fetched", zap.Int("count", len(locations)))
	span.SetAttributes(attribute.Int("locations.count", len(locations)))
	return locations, nil
}

// locationRow is the raw shape of a stats query row before conversion.
type locationRow struct {
	ID               uuid.UUID
	Name             string
	Address          string
	Summary          *string
	Latitude         *float64
	Longitude        *float64
	Tags             []byte
	Rating           *float64
	RatingCount      *int
	BusinessStatus   *string
	VisitCount       int
	WantToVisitCount int
}

func (row locationRow) toDomain() (models.LocationStats, error) {
	var tags models.TagSet
	if err := json.Unmarshal(row.Tags, &tags); err != nil {
		return models.LocationStats{}, fmt.Errorf("decoding location tags: %w", err)
	}
	loc := models.Location{
		ID:          row.ID,
		Name:        row.Name,
		Address:     row.Address,
		Summary:     row.Summary,
		Tags:        tags,
		Rating:      row.Rating,
		RatingCount: row.RatingCount,
	}
	if row.Latitude != nil && row.Longitude != nil {
		loc.Coordinates = &models.Coordinates{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	if row.BusinessStatus != nil {
		status := models.BusinessStatus(*row.BusinessStatus)
		loc.BusinessStatus = &status
	}
	if loc.Rating != nil && (*loc.Rating < 0 || *loc.Rating > 5) {
		return models.LocationStats{}, fmt.Errorf("location %s has rating %v outside [0,5]", row.ID, *loc.Rating)
	}
	return models.LocationStats{
		Location:         loc,
		VisitCount:       row.VisitCount,
		WantToVisitCount: row.WantToVisitCount,
	}, nil
}

func scanStats(rows pgx.Rows) ([]models.LocationStats, error) {
	var locations []models.LocationStats
	for rows.Next() {
		var row locationRow
		if err := rows.Scan(
			&row.ID,
			&row.Name,
			&row.Address,
			&row.Summary,
			&row.Latitude,
			&row.Longitude,
			&row.Tags,
			&row.Rating,
			&row.RatingCount,
			&row.BusinessStatus,
			&row.VisitCount,
			&row.WantToVisitCount,
		); err != nil {
			return nil, err
		}
		loc, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (r *RepositoryImpl) FuzzySearchNames(ctx context.Context, query string, limit int) ([]models.NameMatch, error) {
	ctx, span := startSpan(ctx, "FuzzySearchNames",
		attribute.String("search.query", query),
		attribute.Int("limit", limit),
	)
	defer span.End()

	l := r.logger.With(zap.String("method", "FuzzySearchNames"), zap.String("query", query))

	sqlQuery := `
		SELECT id, name, address, tags
		FROM locations
		WHERE name % $1 OR name ILIKE $2
		ORDER BY similarity(name, $1) DESC, name, id
		LIMIT $3`

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, sqlQuery, query, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		metrics.ObserveQuery(ctx, "SELECT", "locations", start, err)
		l.Error("Failed to fuzzy search names", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error searching names: %w: %w", models.ErrDataAccess, err)
	}
	defer rows.Close()

	var matches []models.NameMatch
	for rows.Next() {
		var m models.NameMatch
		var rawTags []byte
		if err = rows.Scan(&m.ID, &m.Name, &m.Address, &rawTags); err != nil {
			break
		}
		if err = json.Unmarshal(rawTags, &m.Tags); err != nil {
			err = fmt.Errorf("decoding location tags: %w", err)
			break
		}
		matches = append(matches, m)
	}
	if err == nil {
		err = rows.Err()
	}
	metrics.ObserveQuery(ctx, "SELECT", "locations", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB scan failed")
		return nil, fmt.Errorf("database error reading names: %w: %w", models.ErrDataAccess, err)
	}

	span.SetStatus(codes.Ok, "Names matched")
	return matches, nil
}

func (r *RepositoryImpl) FilterOptions(ctx context.Context) (*models.SearchFilterOptions, error) {
	ctx, span := startSpan(ctx, "FilterOptions")
	defer span.End()

	l := r.logger.With(zap.String("method", "FilterOptions"))
	opts := &models.SearchFilterOptions{
		Types:            []string{},
		BusinessStatuses: []models.BusinessStatus{},
	}

	fail := func(stage string, err error) error {
		l.Error("Failed to load filter options", zap.String("stage", stage), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return fmt.Errorf("database error loading %s: %w: %w", stage, models.ErrDataAccess, err)
	}

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, `
		SELECT DISTINCT t.tag
		FROM locations l, jsonb_array_elements_text(l.tags) AS t(tag)
		ORDER BY t.tag`)
	if err != nil {
		return nil, fail("types", err)
	}
	opts.Types, err = pgx.CollectRows(rows, pgx.RowTo[string])
	metrics.ObserveQuery(ctx, "SELECT", "locations", start, err)
	if err != nil {
		return nil, fail("types", err)
	}

	start = time.Now()
	err = r.pgpool.QueryRow(ctx, `
		SELECT COALESCE(MIN(rating), 0), COALESCE(MAX(rating), 0)
		FROM locations
		WHERE rating IS NOT NULL`).Scan(&opts.RatingRange.Min, &opts.RatingRange.Max)
	metrics.ObserveQuery(ctx, "SELECT", "locations", start, err)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fail("rating range", err)
	}

	start = time.Now()
	rows, err = r.pgpool.Query(ctx, `
		SELECT DISTINCT business_status
		FROM locations
		WHERE business_status IS NOT NULL
		ORDER BY business_status`)
	if err != nil {
		return nil, fail("business statuses", err)
	}
	statuses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	metrics.ObserveQuery(ctx, "SELECT", "locations", start, err)
	if err != nil {
		return nil, fail("business statuses", err)
	}
	for _, s := range statuses {
		opts.BusinessStatuses = append(opts.BusinessStatuses, models.BusinessStatus(s))
	}

	l.Debug("Filter options loaded", zap.Int("types", len(opts.Types)), zap.Int("statuses", len(opts.BusinessStatuses)))
	span.SetStatus(codes.Ok, "Filter options loaded")
	return opts, nil
}
