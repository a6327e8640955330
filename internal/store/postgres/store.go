// Package postgres provides a PostgreSQL implementation of store.Store backed by pgx
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/status-page-server/internal/model"
	"github.com/stacklok/status-page-server/internal/otel"
	"github.com/stacklok/status-page-server/internal/store"
)

const (
	// TracerName is the name used for the postgres store tracer
	TracerName = "github.com/stacklok/status-page-server/store/postgres"

	// foreign_key_violation
	pgForeignKeyViolation = "23503"
)

type options struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// Option is a functional option for configuring the postgres store
type Option func(*options) error

// WithConnectionPool sets the pgx pool. The store takes ownership and closes it on Close.
func WithConnectionPool(pool *pgxpool.Pool) Option {
	return func(o *options) error {
		if pool == nil {
			return fmt.Errorf("pgx pool is required")
		}
		o.pool = pool
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer. Without one, tracing is a no-op.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// Store implements store.Store on a pgx connection pool
type Store struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ store.Store = (*Store)(nil)

// New creates a postgres store with the given options
func New(opts ...Option) (*Store, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}

	return &Store{pool: o.pool, tracer: o.tracer}, nil
}

func (s *Store) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append([]trace.SpanStartOption{trace.WithAttributes(semconv.DBSystemPostgreSQL)}, opts...)
	return otel.StartSpan(ctx, s.tracer, name, opts...)
}

// ListServices implements store.Reader
func (s *Store) ListServices(ctx context.Context) ([]model.Service, error) {
	ctx, span := s.startSpan(ctx, "postgres.ListServices")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT id, name, url FROM services`)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	services, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Service, error) {
		var svc model.Service
		err := row.Scan(&svc.ID, &svc.Name, &svc.URL)
		return svc, err
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to scan services: %w", err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(services)))
	return services, nil
}

// ListInterventions implements store.Reader
func (s *Store) ListInterventions(ctx context.Context) ([]model.Intervention, error) {
	ctx, span := s.startSpan(ctx, "postgres.ListInterventions")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, start_date, estimated_duration, end_date, status, severity, is_planned
		FROM interventions`)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list interventions: %w", err)
	}

	interventions, err := pgx.CollectRows(rows, scanIntervention)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to decode interventions: %w", err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(interventions)))
	return interventions, nil
}

func scanIntervention(row pgx.CollectableRow) (model.Intervention, error) {
	var (
		i        model.Intervention
		desc     pgtype.Text
		duration pgtype.Int8
		start    pgtype.Timestamptz
		end      pgtype.Timestamptz
		status   string
		severity string
	)

	if err := row.Scan(&i.ID, &i.Title, &desc, &start, &duration, &end, &status, &severity, &i.IsPlanned); err != nil {
		return i, err
	}

	var err error
	if i.Status, err = model.ParseStatus(status); err != nil {
		return i, fmt.Errorf("intervention %d: %w", i.ID, err)
	}
	if i.Severity, err = model.ParseSeverity(severity); err != nil {
		return i, fmt.Errorf("intervention %d: %w", i.ID, err)
	}

	i.StartDate = start.Time.UTC()
	if desc.Valid {
		i.Description = &desc.String
	}
	if duration.Valid {
		i.EstimatedDuration = &duration.Int64
	}
	if end.Valid {
		t := end.Time.UTC()
		i.EndDate = &t
	}
	return i, nil
}

// ListServiceIDsForIntervention implements store.Reader
func (s *Store) ListServiceIDsForIntervention(ctx context.Context, interventionID int64) ([]int64, error) {
	ctx, span := s.startSpan(ctx, "postgres.ListServiceIDsForIntervention",
		trace.WithAttributes(otel.AttrInterventionID.Int64(interventionID)))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT service_id FROM interventions_services WHERE intervention_id = $1`, interventionID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list services of intervention %d: %w", interventionID, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to scan services of intervention %d: %w", interventionID, err)
	}
	return ids, nil
}

// InsertService implements store.Store
func (s *Store) InsertService(ctx context.Context, svc *model.Service) (int64, error) {
	if err := svc.Validate(); err != nil {
		return 0, err
	}

	ctx, span := s.startSpan(ctx, "postgres.InsertService")
	defer span.End()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO services (name, url) VALUES ($1, $2) RETURNING id`, svc.Name, svc.URL,
	).Scan(&id)
	if err != nil {
		otel.RecordError(span, err)
		return 0, fmt.Errorf("failed to insert service: %w", err)
	}
	return id, nil
}

// InsertIntervention implements store.Store
func (s *Store) InsertIntervention(
	ctx context.Context, intervention *model.Intervention, serviceIDs []int64,
) (id int64, err error) {
	if err := intervention.Validate(); err != nil {
		return 0, err
	}

	ctx, span := s.startSpan(ctx, "postgres.InsertIntervention")
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO interventions
			(title, description, start_date, estimated_duration, end_date, status, severity, is_planned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		intervention.Title,
		intervention.Description,
		intervention.StartDate.UTC(),
		intervention.EstimatedDuration,
		intervention.EndDate,
		intervention.Status.StorageValue(),
		intervention.Severity.StorageValue(),
		intervention.IsPlanned,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert intervention: %w", err)
	}

	for _, sid := range serviceIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO interventions_services (intervention_id, service_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, sid)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
				return 0, fmt.Errorf("service %d: %w", sid, store.ErrNotFound)
			}
			return 0, fmt.Errorf("failed to link service %d: %w", sid, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit intervention: %w", err)
	}

	span.SetAttributes(otel.AttrInterventionID.Int64(id))
	return id, nil
}

// GetService implements store.Store
func (s *Store) GetService(ctx context.Context, id int64) (*model.Service, error) {
	ctx, span := s.startSpan(ctx, "postgres.GetService", trace.WithAttributes(otel.AttrServiceID.Int64(id)))
	defer span.End()

	svc := model.Service{ID: id}
	err := s.pool.QueryRow(ctx, `SELECT name, url FROM services WHERE id = $1`, id).Scan(&svc.Name, &svc.URL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("service %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get service %d: %w", id, err)
	}
	return &svc, nil
}

// ListServicesWithCounts implements store.Store
func (s *Store) ListServicesWithCounts(ctx context.Context) ([]model.ServiceWithCount, error) {
	ctx, span := s.startSpan(ctx, "postgres.ListServicesWithCounts")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.name, s.url, COUNT(l.intervention_id)
		FROM services s
		LEFT JOIN interventions_services l ON l.service_id = s.id
		GROUP BY s.id, s.name, s.url
		ORDER BY s.id`)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ServiceWithCount, error) {
		var svc model.ServiceWithCount
		err := row.Scan(&svc.ID, &svc.Name, &svc.URL, &svc.InterventionCount)
		return svc, err
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to scan services: %w", err)
	}
	return out, nil
}

// Ping implements store.Store
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements store.Store
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
