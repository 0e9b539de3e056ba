// Package history keeps a durable log of every resolved event in Postgres.
// Unlike the bounded windows it never evicts; re-sent events update their row.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/zonefeed/internal/geo"
	"github.com/onnwee/zonefeed/internal/ingest"
	"github.com/onnwee/zonefeed/internal/tracing"
)

// TableName is the table resolved events are written to.
const TableName = "zone_events"

const schema = `
CREATE TABLE IF NOT EXISTS zone_events (
	id           TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	geohash      TEXT NOT NULL,
	name         TEXT NOT NULL,
	zone         TEXT NOT NULL,
	label        TEXT NOT NULL,
	contained    BOOLEAN NOT NULL,
	distance_km  DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ,
	observed_at  TIMESTAMPTZ,
	reported_at  TIMESTAMPTZ,
	batch_id     TEXT NOT NULL,
	revisions    INTEGER NOT NULL DEFAULT 1,
	first_seen   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_seen    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_zone_events_zone ON zone_events (zone, last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_zone_events_geohash ON zone_events (geohash);
`

const upsertQuery = `
INSERT INTO zone_events (
	id, latitude, longitude, geohash, name, zone, label, contained, distance_km,
	created_at, observed_at, reported_at, batch_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
	latitude    = EXCLUDED.latitude,
	longitude   = EXCLUDED.longitude,
	geohash     = EXCLUDED.geohash,
	name        = EXCLUDED.name,
	zone        = EXCLUDED.zone,
	label       = EXCLUDED.label,
	contained   = EXCLUDED.contained,
	distance_km = EXCLUDED.distance_km,
	created_at  = EXCLUDED.created_at,
	observed_at = EXCLUDED.observed_at,
	reported_at = EXCLUDED.reported_at,
	batch_id    = EXCLUDED.batch_id,
	revisions   = zone_events.revisions + 1,
	last_seen   = NOW()`

// EnsureSchema creates the events table and its indexes if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure %s schema: %w", TableName, err)
	}
	return nil
}

// Postgres writes resolved events to Postgres. It implements ingest.Sink.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgres creates a Postgres history sink.
func NewPostgres(db *sql.DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		db:     db,
		logger: logger,
	}
}

// Name implements ingest.Sink.
func (p *Postgres) Name() string {
	return "postgres"
}

// Publish upserts every resolved event of u in a single transaction.
func (p *Postgres) Publish(ctx context.Context, u ingest.Update) (err error) {
	if len(u.Resolved) == 0 {
		return nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, TableName, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range u.Resolved {
		ev := r.Event
		_, err = stmt.ExecContext(ctx,
			ev.ID,
			ev.Point.Lat,
			ev.Point.Lon,
			ev.Point.Geohash(geo.DefaultPrecision),
			ev.Name,
			r.Resolution.Zone,
			r.Resolution.Label,
			r.Resolution.Contained,
			r.Resolution.DistanceKm,
			nullTime(ev.Created),
			nullTime(ev.Observed),
			nullTime(ev.Reported),
			u.BatchID,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert event %s: %w", ev.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	p.logger.Debug("recorded event history",
		slog.String("batch_id", u.BatchID),
		slog.Int("events", len(u.Resolved)))
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
