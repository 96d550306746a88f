package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

// Repository persists and queries person-location interactions.
type Repository interface {
	// UpsertInteraction inserts the interaction or, when the same
	// (person, location, action) already exists, refreshes its description and timestamp.
	UpsertInteraction(ctx context.Context, personID, locationID uuid.UUID, action models.ActionType, description *string) (*models.Interaction, error)
	// ListByPerson returns a person's interactions, optionally restricted to one action type.
	ListByPerson(ctx context.Context, personID uuid.UUID, action *models.ActionType) ([]models.Interaction, error)
	ListByLocation(ctx context.Context, locationID uuid.UUID, action *models.ActionType) ([]models.Interaction, error)
	// ListCoVisitors returns up to limit other persons with the given action on locationID.
	ListCoVisitors(ctx context.Context, locationID uuid.UUID, action models.ActionType, exclude uuid.UUID, limit int) ([]uuid.UUID, error)
	PersonExists(ctx context.Context, personID uuid.UUID) (bool, error)
}

const foreignKeyViolation = "23503"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.DBTX
}

func NewRepositoryImpl(pgpool database.DBTX, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) UpsertInteraction(ctx context.Context, personID, locationID uuid.UUID, action models.ActionType, description *string) (*models.Interaction, error) {
	ctx, span := otel.Tracer("InteractionRepo").Start(ctx, "UpsertInteraction", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "user_locations"),
		attribute.String("person.id", personID.String()),
		attribute.String("location.id", locationID.String()),
		attribute.String("interaction.action", action.String()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "UpsertInteraction"),
		zap.String("personID", personID.String()),
		zap.String("locationID", locationID.String()),
		zap.String("action", action.String()))

	if err := models.ValidateInteractionKey(personID, locationID, action); err != nil {
		span.SetStatus(codes.Error, "Invalid interaction")
		return nil, err
	}

	// A repeat without a description keeps the one already stored.
	query := `
		INSERT INTO user_locations (user_id, location_id, action_type, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, location_id, action_type) DO UPDATE
		SET description = COALESCE(EXCLUDED.description, user_locations.description),
		    updated_at = NOW()
		RETURNING id, user_id, location_id, action_type, description, created_at, updated_at`

	start := time.Now()
	var i models.Interaction
	var actionType string
	err := r.pgpool.QueryRow(ctx, query, personID, locationID, string(action), description).Scan(
		&i.ID,
		&i.PersonID,
		&i.LocationID,
		&actionType,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	metrics.ObserveQuery(ctx, "UPSERT", "user_locations", start, err)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			l.Warn("Interaction references unknown person or location", zap.String("constraint", pgErr.ConstraintName))
			span.SetStatus(codes.Error, "Referenced row missing")
			return nil, fmt.Errorf("person or location does not exist: %w", models.ErrNotFound)
		}
		l.Error("Failed to upsert interaction", zap.Error(err))
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return nil, fmt.Errorf("database error upserting interaction: %w: %w", models.ErrDataAccess, err)
	}
	i.ActionType = models.ActionType(actionType)

	l.Info("Interaction upserted", zap.String("interactionID", i.ID.String()))
	span.SetStatus(codes.Ok, "Interaction upserted")
	return &i, nil
}

func (r *RepositoryImpl) ListByPerson(ctx context.Context, personID uuid.UUID, action *models.ActionType) ([]models.Interaction, error) {
	ctx, span := otel.Tracer("InteractionRepo").Start(ctx, "ListByPerson", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "user_locations"),
		attribute.String("person.id", personID.String()),
	))
	defer span.End()

	if personID == uuid.Nil {
		span.SetStatus(codes.Error, "Missing person id")
		return nil, fmt.Errorf("person id is required: %w", models.ErrValidation)
	}
	return r.list(ctx, span, "ListByPerson", "ul.user_id", personID, action)
}

func (r *RepositoryImpl) ListByLocation(ctx context.Context, locationID uuid.UUID, action *models.ActionType) ([]models.Interaction, error) {
	ctx, span := otel.Tracer("InteractionRepo").Start(ctx, "ListByLocation", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "user_locations"),
		attribute.String("location.id", locationID.String()),
	))
	defer span.End()

	if locationID == uuid.Nil {
		span.SetStatus(codes.Error, "Missing location id")
		return nil, fmt.Errorf("location id is required: %w", models.ErrValidation)
	}
	return r.list(ctx, span, "ListByLocation", "ul.location_id", locationID, action)
}

// list runs the shared interaction select. id is bound with sq.Expr because
// sq.Eq expands array values such as uuid.UUID into IN lists.
func (r *RepositoryImpl) list(ctx context.Context, span trace.Span, method, column string, id uuid.UUID, action *models.ActionType) ([]models.Interaction, error) {
	l := r.logger.With(zap.String("method", method), zap.String("id", id.String()))

	builder := psql.
		Select("ul.id", "ul.user_id", "ul.location_id", "ul.action_type", "ul.description",
			"ul.created_at", "ul.updated_at", "l.tags").
		From("user_locations ul").
		Join("locations l ON l.id = ul.location_id").
		Where(sq.Expr(column+" = ?", id))

	if action != nil {
		if !action.Valid() {
			span.SetStatus(codes.Error, "Invalid action type")
			return nil, fmt.Errorf("unknown action type %q: %w", *action, models.ErrValidation)
		}
		builder = builder.Where(sq.Eq{"ul.action_type": string(*action)})
	}

	query, args, err := builder.OrderBy("ul.updated_at DESC", "ul.id").ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("building interaction query: %w", err)
	}

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveQuery(ctx, "SELECT", "user_locations", start, err)
		l.Error("Failed to query interactions", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing interactions: %w: %w", models.ErrDataAccess, err)
	}
	defer rows.Close()

	interactions, err := scanInteractions(rows)
	metrics.ObserveQuery(ctx, "SELECT", "user_locations", start, err)
	if err != nil {
		l.Error("Failed to read interaction rows", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB scan failed")
		return nil, fmt.Errorf("database error reading interactions: %w: %w", models.ErrDataAccess, err)
	}

	l.Debug("Interactions fetched", zap.Int("count", len(interactions)))
	span.SetAttributes(attribute.Int("interactions.count", len(interactions)))
	span.SetStatus(codes.Ok, "Interactions fetched")
	return interactions, nil
}

func scanInteractions(rows pgx.Rows) ([]models.Interaction, error) {
	var interactions []models.Interaction
	for rows.Next() {
		var i models.Interaction
		var actionType string
		var rawTags []byte
		if err := rows.Scan(
			&i.ID,
			&i.PersonID,
			&i.LocationID,
			&actionType,
			&i.Description,
			&i.CreatedAt,
			&i.UpdatedAt,
			&rawTags,
		); err != nil {
			return nil, err
		}
		i.ActionType = models.ActionType(actionType)
		if err := json.Unmarshal(rawTags, &i.LocationTags); err != nil {
			return nil, fmt.Errorf("decoding location tags: %w", err)
		}
		interactions = append(interactions, i)
	}
	return interactions, rows.Err()
}

func (r *RepositoryImpl) ListCoVisitors(ctx context.Context, locationID uuid.UUID, action models.ActionType, exclude uuid.UUID, limit int) ([]uuid.UUID, error) {
	ctx, span := otel.Tracer("InteractionRepo").Start(ctx, "ListCoVisitors", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "user_locations"),
		attribute.String("location.id", locationID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "ListCoVisitors"), zap.String("locationID", locationID.String()))

	if locationID == uuid.Nil {
		return nil, fmt.Errorf("location id is required: %w", models.ErrValidation)
	}
	if !action.Valid() {
		return nil, fmt.Errorf("unknown action type %q: %w", action, models.ErrValidation)
	}
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT user_id
		FROM user_locations
		WHERE location_id = $1 AND action_type = $2 AND user_id <> $3
		ORDER BY updated_at DESC, user_id
		LIMIT $4`

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, locationID, string(action), exclude, limit)
	if err != nil {
		metrics.ObserveQuery(ctx, "SELECT", "user_locations", start, err)
		l.Error("Failed to query co-visitors", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing co-visitors: %w: %w", models.ErrDataAccess, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			metrics.ObserveQuery(ctx, "SELECT", "user_locations", start, err)
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning co-visitor: %w: %w", models.ErrDataAccess, err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	metrics.ObserveQuery(ctx, "SELECT", "user_locations", start, err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading co-visitors: %w: %w", models.ErrDataAccess, err)
	}

	span.SetStatus(codes.Ok, "Co-visitors fetched")
	return ids, nil
}

func (r *RepositoryImpl) PersonExists(ctx context.Context, personID uuid.UUID) (bool, error) {
	ctx, span := otel.Tracer("InteractionRepo").Start(ctx, "PersonExists", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	start := time.Now()
	var exists bool
	err := r.pgpool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", personID).Scan(&exists)
	metrics.ObserveQuery(ctx, "SELECT", "users", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("database error checking person: %w: %w", models.ErrDataAccess, err)
	}
	return exists, nil
}
