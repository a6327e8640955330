// Package sqlite provides a SQLite implementation of store.Store.
// Dates are persisted as unix seconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// registers the sqlite3 database/sql driver
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/status-page-server/internal/model"
	"github.com/stacklok/status-page-server/internal/otel"
	"github.com/stacklok/status-page-server/internal/store"
)

// TracerName is the name used for the sqlite store tracer
const TracerName = "github.com/stacklok/status-page-server/store/sqlite"

var dbSystem = attribute.String("db.system", "sqlite")

// Option is a functional option for configuring the sqlite store
type Option func(*Store)

// WithTracer sets the OpenTelemetry tracer. Without one, tracing is a no-op.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.tracer = tracer
	}
}

// Store implements store.Store on a single SQLite connection
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ store.Store = (*Store)(nil)

// Open opens the database file at path. The schema must already be migrated.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer at a time; also keeps the foreign_keys pragma on the only connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append([]trace.SpanStartOption{trace.WithAttributes(dbSystem)}, opts...)
	return otel.StartSpan(ctx, s.tracer, name, opts...)
}

// ListServices implements store.Reader
func (s *Store) ListServices(ctx context.Context) ([]model.Service, error) {
	ctx, span := s.startSpan(ctx, "sqlite.ListServices")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, url FROM services`)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.URL); err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(services)))
	return services, nil
}

// ListInterventions implements store.Reader
func (s *Store) ListInterventions(ctx context.Context) ([]model.Intervention, error) {
	ctx, span := s.startSpan(ctx, "sqlite.ListInterventions")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, start_date, estimated_duration, end_date, status, severity, is_planned
		FROM interventions`)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list interventions: %w", err)
	}
	defer rows.Close()

	var interventions []model.Intervention
	for rows.Next() {
		i, err := scanIntervention(rows)
		if err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to decode interventions: %w", err)
		}
		interventions = append(interventions, i)
	}
	if err := rows.Err(); err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list interventions: %w", err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(interventions)))
	return interventions, nil
}

func scanIntervention(rows *sql.Rows) (model.Intervention, error) {
	var (
		i        model.Intervention
		desc     sql.NullString
		start    int64
		duration sql.NullInt64
		end      sql.NullInt64
		status   string
		severity string
	)

	if err := rows.Scan(&i.ID, &i.Title, &desc, &start, &duration, &end, &status, &severity, &i.IsPlanned); err != nil {
		return i, err
	}

	var err error
	if i.Status, err = model.ParseStatus(status); err != nil {
		return i, fmt.Errorf("intervention %d: %w", i.ID, err)
	}
	if i.Severity, err = model.ParseSeverity(severity); err != nil {
		return i, fmt.Errorf("intervention %d: %w", i.ID, err)
	}

	i.StartDate = time.Unix(start, 0).UTC()
	if desc.Valid {
		i.Description = &desc.String
	}
	if duration.Valid {
		i.EstimatedDuration = &duration.Int64
	}
	if end.Valid {
		t := time.Unix(end.Int64, 0).UTC()
		i.EndDate = &t
	}
	return i, nil
}

// ListServiceIDsForIntervention implements store.Reader
func (s *Store) ListServiceIDsForIntervention(ctx context.Context, interventionID int64) ([]int64, error) {
	ctx, span := s.startSpan(ctx, "sqlite.ListServiceIDsForIntervention",
		trace.WithAttributes(otel.AttrInterventionID.Int64(interventionID)))
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT service_id FROM interventions_services WHERE intervention_id = ?`, interventionID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list services of intervention %d: %w", interventionID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertService implements store.Store
func (s *Store) InsertService(ctx context.Context, svc *model.Service) (int64, error) {
	if err := svc.Validate(); err != nil {
		return 0, err
	}

	ctx, span := s.startSpan(ctx, "sqlite.InsertService")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `INSERT INTO services (name, url) VALUES (?, ?)`, svc.Name, svc.URL)
	if err != nil {
		otel.RecordError(span, err)
		return 0, fmt.Errorf("failed to insert service: %w", err)
	}
	return res.LastInsertId()
}

// InsertIntervention implements store.Store
func (s *Store) InsertIntervention(
	ctx context.Context, intervention *model.Intervention, serviceIDs []int64,
) (id int64, err error) {
	if err := intervention.Validate(); err != nil {
		return 0, err
	}

	ctx, span := s.startSpan(ctx, "sqlite.InsertIntervention")
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, sid := range serviceIDs {
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM services WHERE id = ?`, sid).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("service %d: %w", sid, store.ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("failed to look up service %d: %w", sid, err)
		}
	}

	var endDate sql.NullInt64
	if intervention.EndDate != nil {
		endDate = sql.NullInt64{Int64: intervention.EndDate.Unix(), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO interventions
			(title, description, start_date, estimated_duration, end_date, status, severity, is_planned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		intervention.Title,
		intervention.Description,
		intervention.StartDate.Unix(),
		intervention.EstimatedDuration,
		endDate,
		intervention.Status.StorageValue(),
		intervention.Severity.StorageValue(),
		intervention.IsPlanned,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert intervention: %w", err)
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, err
	}

	for _, sid := range serviceIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO interventions_services (intervention_id, service_id) VALUES (?, ?)`, id, sid)
		if err != nil {
			return 0, fmt.Errorf("failed to link service %d: %w", sid, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit intervention: %w", err)
	}

	span.SetAttributes(otel.AttrInterventionID.Int64(id))
	return id, nil
}

// GetService implements store.Store
func (s *Store) GetService(ctx context.Context, id int64) (*model.Service, error) {
	ctx, span := s.startSpan(ctx, "sqlite.GetService", trace.WithAttributes(otel.AttrServiceID.Int64(id)))
	defer span.End()

	svc := model.Service{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name, url FROM services WHERE id = ?`, id).Scan(&svc.Name, &svc.URL)
	if errors.Is(err, sql.ErrNoRows) {
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
	ctx, span := s.startSpan(ctx, "sqlite.ListServicesWithCounts")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.url, COUNT(l.intervention_id)
		FROM services s
		LEFT JOIN interventions_services l ON l.service_id = s.id
		GROUP BY s.id, s.name, s.url
		ORDER BY s.id`)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var out []model.ServiceWithCount
	for rows.Next() {
		var svc model.ServiceWithCount
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.URL, &svc.InterventionCount); err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// Ping implements store.Store
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements store.Store
func (s *Store) Close() error {
	return s.db.Close()
}
