// Package postgres implements the reconcile.Store boundary on PostgreSQL
// via pgx. Intended for deployments where several trackers share one
// database; the schema mirrors the SQLite store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/reconcile"
)

const schema = `
CREATE TABLE IF NOT EXISTS properties (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	source_id TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL,
	address TEXT NOT NULL,
	region TEXT NOT NULL,
	kind TEXT NOT NULL,
	postal_code TEXT,
	price BIGINT,
	living_area DOUBLE PRECISION,
	plot_area DOUBLE PRECISION,
	rooms INT,
	bedrooms INT,
	construction_year INT,
	energy_label TEXT,
	description TEXT,
	photo_urls TEXT[],
	status TEXT NOT NULL DEFAULT 'active',
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_properties_scope ON properties(region, kind, status);

CREATE TABLE IF NOT EXISTS price_observations (
	property_id BIGINT NOT NULL REFERENCES properties(id),
	price BIGINT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (property_id, observed_at)
);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	region TEXT NOT NULL,
	kind TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	listings_found INT NOT NULL DEFAULT 0,
	listings_new INT NOT NULL DEFAULT 0,
	listings_updated INT NOT NULL DEFAULT 0,
	errors INT NOT NULL DEFAULT 0,
	delisted_count INT NOT NULL DEFAULT 0,
	source_used TEXT NOT NULL DEFAULT 'none'
);
CREATE INDEX IF NOT EXISTS idx_runs_scope ON runs(region, kind, started_at);
`

// Store implements reconcile.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// FindBySourceID returns the record with the given natural key.
func (s *Store) FindBySourceID(ctx context.Context, sourceID string) (*reconcile.PropertyRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, source_id, url, address, region, kind,
			postal_code, price, living_area, plot_area, rooms, bedrooms,
			construction_year, energy_label, description, photo_urls,
			status, first_seen_at, last_seen_at
		FROM properties WHERE source_id = $1`, sourceID)
	rec, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("property", sourceID)
	}
	if err != nil {
		return nil, errors.WrapStore("find", sourceID, err)
	}
	return rec, nil
}

// Upsert atomically creates or updates a record keyed by source_id.
func (s *Store) Upsert(ctx context.Context, rec *reconcile.PropertyRecord) (*reconcile.PropertyRecord, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO properties (
			source_id, url, address, region, kind,
			postal_code, price, living_area, plot_area, rooms, bedrooms,
			construction_year, energy_label, description, photo_urls,
			status, first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (source_id) DO UPDATE SET
			url = excluded.url,
			address = excluded.address,
			region = excluded.region,
			kind = excluded.kind,
			postal_code = excluded.postal_code,
			price = excluded.price,
			living_area = excluded.living_area,
			plot_area = excluded.plot_area,
			rooms = excluded.rooms,
			bedrooms = excluded.bedrooms,
			construction_year = excluded.construction_year,
			energy_label = excluded.energy_label,
			description = excluded.description,
			photo_urls = excluded.photo_urls,
			status = excluded.status,
			last_seen_at = excluded.last_seen_at
		RETURNING id`,
		rec.SourceID, rec.URL, rec.Address, rec.Region, string(rec.Kind),
		rec.PostalCode.Ptr(), rec.Price.Ptr(),
		rec.LivingArea.Ptr(), rec.PlotArea.Ptr(),
		rec.Rooms.Ptr(), rec.Bedrooms.Ptr(),
		rec.ConstructionYear.Ptr(), rec.EnergyLabel.Ptr(),
		rec.Description.Ptr(), rec.PhotoURLs,
		string(rec.Status), rec.FirstSeenAt.UTC(), rec.LastSeenAt.UTC(),
	).Scan(&rec.ID)
	if err != nil {
		return nil, errors.WrapStore("upsert", rec.SourceID, err)
	}
	return rec, nil
}

// AppendPriceObservation records a price point, ignoring exact duplicates.
func (s *Store) AppendPriceObservation(ctx context.Context, propertyID int64, price int, observedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_observations (property_id, price, observed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (property_id, observed_at) DO NOTHING`,
		propertyID, price, observedAt.UTC())
	if err != nil {
		return errors.WrapStore("append observation", "", err)
	}
	return nil
}

// PriceHistory returns all observations for a property, oldest first.
func (s *Store) PriceHistory(ctx context.Context, propertyID int64) ([]reconcile.PriceObservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT property_id, price, observed_at FROM price_observations
		WHERE property_id = $1 ORDER BY observed_at`, propertyID)
	if err != nil {
		return nil, errors.WrapStore("price history", "", err)
	}
	defer rows.Close()

	var out []reconcile.PriceObservation
	for rows.Next() {
		var obs reconcile.PriceObservation
		if err := rows.Scan(&obs.PropertyID, &obs.Price, &obs.ObservedAt); err != nil {
			return nil, errors.WrapStore("price history", "", err)
		}
		obs.ObservedAt = obs.ObservedAt.UTC()
		out = append(out, obs)
	}
	return out, rows.Err()
}

// FindActiveInScope returns the active records in a scope keyed by source_id.
func (s *Store) FindActiveInScope(ctx context.Context, scope listing.Scope) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source_id, id FROM properties
		WHERE region = $1 AND kind = $2 AND status = $3`,
		scope.Region, string(scope.Kind), string(reconcile.StatusActive))
	if err != nil {
		return nil, errors.WrapStore("find active", "", err)
	}
	defer rows.Close()

	active := make(map[string]int64)
	for rows.Next() {
		var sourceID string
		var id int64
		if err := rows.Scan(&sourceID, &id); err != nil {
			return nil, errors.WrapStore("find active", "", err)
		}
		active[sourceID] = id
	}
	return active, rows.Err()
}

// MarkDelisted transitions the given properties to delisted.
func (s *Store) MarkDelisted(ctx context.Context, propertyIDs []int64) error {
	if len(propertyIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		"UPDATE properties SET status = $1 WHERE id = ANY($2)",
		string(reconcile.StatusDelisted), propertyIDs)
	if err != nil {
		return errors.WrapStore("mark delisted", "", err)
	}
	return nil
}

// CreateRun persists a freshly started run.
func (s *Store) CreateRun(ctx context.Context, run *reconcile.RunMetadata) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, region, kind, started_at, source_used)
		VALUES ($1, $2, $3, $4, $5)`,
		run.RunID, run.Scope.Region, string(run.Scope.Kind),
		run.StartedAt.UTC(), string(run.SourceUsed))
	if err != nil {
		return errors.WrapStore("create run", "", err)
	}
	return nil
}

// FinalizeRun persists the finished statistics, rejecting a second finalize.
func (s *Store) FinalizeRun(ctx context.Context, run *reconcile.RunMetadata) error {
	if run.FinishedAt == nil {
		return errors.NewConfigError("store", "finalize requires a finish time", nil)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE runs SET
			finished_at = $1, listings_found = $2, listings_new = $3,
			listings_updated = $4, errors = $5, delisted_count = $6, source_used = $7
		WHERE run_id = $8 AND finished_at IS NULL`,
		run.FinishedAt.UTC(), run.ListingsFound, run.ListingsNew,
		run.ListingsUpdated, run.Errors, run.DelistedCount, string(run.SourceUsed),
		run.RunID)
	if err != nil {
		return errors.WrapStore("finalize run", "", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM runs WHERE run_id = $1)", run.RunID).Scan(&exists); err != nil {
			return errors.WrapStore("finalize run", "", err)
		}
		if exists {
			return errors.ErrRunFinalized
		}
		return errors.NewNotFoundError("run", run.RunID)
	}
	return nil
}

// RecentRuns returns up to limit runs for the scope, newest first.
func (s *Store) RecentRuns(ctx context.Context, scope listing.Scope, limit int) ([]reconcile.RunMetadata, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, region, kind, started_at, finished_at,
			listings_found, listings_new, listings_updated,
			errors, delisted_count, source_used
		FROM runs WHERE region = $1 AND kind = $2
		ORDER BY started_at DESC LIMIT $3`,
		scope.Region, string(scope.Kind), limit)
	if err != nil {
		return nil, errors.WrapStore("recent runs", "", err)
	}
	defer rows.Close()

	var out []reconcile.RunMetadata
	for rows.Next() {
		var run reconcile.RunMetadata
		var kind, sourceUsed string
		var finishedAt *time.Time
		if err := rows.Scan(&run.RunID, &run.Scope.Region, &kind, &run.StartedAt, &finishedAt,
			&run.ListingsFound, &run.ListingsNew, &run.ListingsUpdated,
			&run.Errors, &run.DelistedCount, &sourceUsed); err != nil {
			return nil, errors.WrapStore("recent runs", "", err)
		}
		run.Scope.Kind = listing.Kind(kind)
		run.StartedAt = run.StartedAt.UTC()
		if finishedAt != nil {
			t := finishedAt.UTC()
			run.FinishedAt = &t
		}
		run.SourceUsed = reconcile.SourceUsed(sourceUsed)
		out = append(out, run)
	}
	return out, rows.Err()
}

// scanProperty reads one property row. NULL columns come back as absent
// fields.
func scanProperty(row pgx.Row) (*reconcile.PropertyRecord, error) {
	var rec reconcile.PropertyRecord
	var kind, status string
	var postalCode, energyLabel, description *string
	var price, rooms, bedrooms, constructionYear *int
	var livingArea, plotArea *float64

	err := row.Scan(&rec.ID, &rec.SourceID, &rec.URL, &rec.Address, &rec.Region, &kind,
		&postalCode, &price, &livingArea, &plotArea, &rooms, &bedrooms,
		&constructionYear, &energyLabel, &description, &rec.PhotoURLs,
		&status, &rec.FirstSeenAt, &rec.LastSeenAt)
	if err != nil {
		return nil, err
	}

	rec.Kind = listing.Kind(kind)
	rec.Status = reconcile.Status(status)
	rec.FirstSeenAt = rec.FirstSeenAt.UTC()
	rec.LastSeenAt = rec.LastSeenAt.UTC()
	rec.PostalCode = listing.FromPtr(postalCode)
	rec.Price = listing.FromPtr(price)
	rec.LivingArea = listing.FromPtr(livingArea)
	rec.PlotArea = listing.FromPtr(plotArea)
	rec.Rooms = listing.FromPtr(rooms)
	rec.Bedrooms = listing.FromPtr(bedrooms)
	rec.ConstructionYear = listing.FromPtr(constructionYear)
	rec.EnergyLabel = listing.FromPtr(energyLabel)
	rec.Description = listing.FromPtr(description)
	return &rec, nil
}
