// Package postgres reads usage data and its audit trail from PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/usage"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

const (
	queryLastModified = `SELECT timestamp FROM public.audit WHERE schema_name = $1 ORDER BY timestamp DESC LIMIT 1`

	queryUsages = `SELECT time, amount, usage_type::text, consumer::text, municipality
FROM water_usage.usages
ORDER BY time
LIMIT $1 OFFSET $2`

	queryConsumerExists = `SELECT EXISTS (SELECT 1 FROM water_usage.consumers WHERE id = $1)`

	queryConsumerUsages = `SELECT time, amount, usage_type::text, consumer::text, municipality
FROM water_usage.usages
WHERE consumer = $1
ORDER BY time
LIMIT $2 OFFSET $3`

	queryMunicipalUsages = `SELECT time, amount, usage_type::text, consumer::text, municipality
FROM water_usage.usages
WHERE municipality = $1
ORDER BY time
LIMIT $2 OFFSET $3`

	queryTypedUsages = `SELECT time, amount, usage_type::text, consumer::text, municipality
FROM water_usage.usages
WHERE usage_type = $1
ORDER BY time
LIMIT $2 OFFSET $3`
)

// Open connects to dsn with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

type Repository struct {
	db          *sql.DB
	auditSchema string
	now         func() time.Time
}

func NewRepository(db *sql.DB, auditSchema string) *Repository {
	return &Repository{
		db:          db,
		auditSchema: auditSchema,
		now:         time.Now,
	}
}

// LastModified returns the newest audit timestamp for the usage schema. An
// empty audit trail counts as modified right now.
func (r *Repository) LastModified(ctx context.Context) (time.Time, error) {
	ctx, span := tracer.Start(ctx, "infra.postgres.LastModified")
	defer span.End()

	var ts time.Time
	err := r.db.QueryRowContext(ctx, queryLastModified, r.auditSchema).Scan(&ts)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return r.now().UTC(), nil
	case err != nil:
		span.RecordError(err)
		return time.Time{}, fmt.Errorf("failed to query audit log: %w", err)
	}
	return ts.UTC(), nil
}

func (r *Repository) List(ctx context.Context, page usage.Page) ([]usage.Record, error) {
	ctx, span := tracer.Start(ctx, "infra.postgres.List")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, queryUsages, page.Size, page.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query usages: %w", err)
	}
	return scanRecords(rows)
}

func (r *Repository) ConsumerExists(ctx context.Context, consumerID uuid.UUID) (bool, error) {
	ctx, span := tracer.Start(ctx, "infra.postgres.ConsumerExists")
	defer span.End()

	var exists bool
	if err := r.db.QueryRowContext(ctx, queryConsumerExists, consumerID.String()).Scan(&exists); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to query consumer: %w", err)
	}
	return exists, nil
}

func (r *Repository) ListByConsumer(ctx context.Context, consumerID uuid.UUID, page usage.Page) ([]usage.Record, error) {
	ctx, span := tracer.Start(ctx, "infra.postgres.ListByConsumer")
	defer span.End()

	span.SetAttributes(attribute.String("consumer.id", consumerID.String()))

	rows, err := r.db.QueryContext(ctx, queryConsumerUsages, consumerID.String(), page.Size, page.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query consumer usages: %w", err)
	}
	return scanRecords(rows)
}

func (r *Repository) ListByMunicipality(ctx context.Context, ars string, page usage.Page) ([]usage.Record, error) {
	ctx, span := tracer.Start(ctx, "infra.postgres.ListByMunicipality")
	defer span.End()

	span.SetAttributes(attribute.String("municipality.ars", ars))

	rows, err := r.db.QueryContext(ctx, queryMunicipalUsages, ars, page.Size, page.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query municipal usages: %w", err)
	}
	return scanRecords(rows)
}

func (r *Repository) ListByUsageType(ctx context.Context, usageTypeID uuid.UUID, page usage.Page) ([]usage.Record, error) {
	ctx, span := tracer.Start(ctx, "infra.postgres.ListByUsageType")
	defer span.End()

	span.SetAttributes(attribute.String("usage_type.id", usageTypeID.String()))

	rows, err := r.db.QueryContext(ctx, queryTypedUsages, usageTypeID.String(), page.Size, page.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query typed usages: %w", err)
	}
	return scanRecords(rows)
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanRecords(rows *sql.Rows) ([]usage.Record, error) {
	defer rows.Close()

	records := make([]usage.Record, 0)
	for rows.Next() {
		var rec usage.Record
		var usageType, consumer, muni sql.NullString
		if err := rows.Scan(&rec.Time, &rec.Amount, &usageType, &consumer, &muni); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.UsageType = nullable(usageType)
		rec.ConsumerID = nullable(consumer)
		rec.ARS = nullable(muni)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage records: %w", err)
	}
	return records, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
