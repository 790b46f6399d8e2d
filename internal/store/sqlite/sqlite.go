// Package sqlite implements the reconcile.Store boundary on an embedded
// SQLite database. It is the default store for single-host deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/reconcile"
)

// Timestamps are stored as Unix nanoseconds so observation uniqueness does
// not depend on text formatting.
const schema = `
CREATE TABLE IF NOT EXISTS properties (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL,
	address TEXT NOT NULL,
	region TEXT NOT NULL,
	kind TEXT NOT NULL,
	postal_code TEXT,
	price INTEGER,
	living_area REAL,
	plot_area REAL,
	rooms INTEGER,
	bedrooms INTEGER,
	construction_year INTEGER,
	energy_label TEXT,
	description TEXT,
	photo_urls TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	first_seen_at INTEGER NOT NULL,
	last_seen_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_properties_scope ON properties(region, kind, status);

CREATE TABLE IF NOT EXISTS price_observations (
	property_id INTEGER NOT NULL REFERENCES properties(id),
	price INTEGER NOT NULL,
	observed_at INTEGER NOT NULL,
	PRIMARY KEY (property_id, observed_at)
);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	region TEXT NOT NULL,
	kind TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	listings_found INTEGER NOT NULL DEFAULT 0,
	listings_new INTEGER NOT NULL DEFAULT 0,
	listings_updated INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	delisted_count INTEGER NOT NULL DEFAULT 0,
	source_used TEXT NOT NULL DEFAULT 'none'
);
CREATE INDEX IF NOT EXISTS idx_runs_scope ON runs(region, kind, started_at);
`

// Store implements reconcile.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. WAL mode keeps concurrent runs over disjoint scopes from blocking
// each other.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory database for tests. The connection pool is
// pinned to one connection so every query sees the same database.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const propertyColumns = `id, source_id, url, address, region, kind,
	postal_code, price, living_area, plot_area, rooms, bedrooms,
	construction_year, energy_label, description, photo_urls,
	status, first_seen_at, last_seen_at`

// FindBySourceID returns the record with the given natural key.
func (s *Store) FindBySourceID(ctx context.Context, sourceID string) (*reconcile.PropertyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+propertyColumns+" FROM properties WHERE source_id = ?", sourceID)
	rec, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("property", sourceID)
	}
	if err != nil {
		return nil, errors.WrapStore("find", sourceID, err)
	}
	return rec, nil
}

// Upsert atomically creates or updates a record keyed by source_id.
func (s *Store) Upsert(ctx context.Context, rec *reconcile.PropertyRecord) (*reconcile.PropertyRecord, error) {
	photos, err := json.Marshal(rec.PhotoURLs)
	if err != nil {
		return nil, errors.WrapStore("upsert", rec.SourceID, err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO properties (
			source_id, url, address, region, kind,
			postal_code, price, living_area, plot_area, rooms, bedrooms,
			construction_year, energy_label, description, photo_urls,
			status, first_seen_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		fieldArg(rec.PostalCode), fieldArg(rec.Price),
		fieldArg(rec.LivingArea), fieldArg(rec.PlotArea),
		fieldArg(rec.Rooms), fieldArg(rec.Bedrooms),
		fieldArg(rec.ConstructionYear), fieldArg(rec.EnergyLabel),
		fieldArg(rec.Description), string(photos),
		string(rec.Status), rec.FirstSeenAt.UTC().UnixNano(), rec.LastSeenAt.UTC().UnixNano(),
	).Scan(&rec.ID)
	if err != nil {
		return nil, errors.WrapStore("upsert", rec.SourceID, err)
	}
	return rec, nil
}

// AppendPriceObservation records a price point, ignoring exact duplicates.
func (s *Store) AppendPriceObservation(ctx context.Context, propertyID int64, price int, observedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO price_observations (property_id, price, observed_at)
		VALUES (?, ?, ?)`,
		propertyID, price, observedAt.UTC().UnixNano())
	if err != nil {
		return errors.WrapStore("append observation", "", err)
	}
	return nil
}

// PriceHistory returns all observations for a property, oldest first.
func (s *Store) PriceHistory(ctx context.Context, propertyID int64) ([]reconcile.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT property_id, price, observed_at FROM price_observations
		WHERE property_id = ? ORDER BY observed_at`, propertyID)
	if err != nil {
		return nil, errors.WrapStore("price history", "", err)
	}
	defer rows.Close()

	var out []reconcile.PriceObservation
	for rows.Next() {
		var obs reconcile.PriceObservation
		var observedAt int64
		if err := rows.Scan(&obs.PropertyID, &obs.Price, &observedAt); err != nil {
			return nil, errors.WrapStore("price history", "", err)
		}
		obs.ObservedAt = time.Unix(0, observedAt).UTC()
		out = append(out, obs)
	}
	return out, rows.Err()
}

// FindActiveInScope returns the active records in a scope keyed by source_id.
func (s *Store) FindActiveInScope(ctx context.Context, scope listing.Scope) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, id FROM properties
		WHERE region = ? AND kind = ? AND status = ?`,
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

// MarkDelisted transitions the given properties to delisted. LastSeenAt is
// left untouched.
func (s *Store) MarkDelisted(ctx context.Context, propertyIDs []int64) error {
	if len(propertyIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(propertyIDs)), ",")
	args := make([]any, 0, len(propertyIDs)+1)
	args = append(args, string(reconcile.StatusDelisted))
	for _, id := range propertyIDs {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE properties SET status = ? WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return errors.WrapStore("mark delisted", "", err)
	}
	return nil
}

// CreateRun persists a freshly started run.
func (s *Store) CreateRun(ctx context.Context, run *reconcile.RunMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, region, kind, started_at, source_used)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Scope.Region, string(run.Scope.Kind),
		run.StartedAt.UTC().UnixNano(), string(run.SourceUsed))
	if err != nil {
		return errors.WrapStore("create run", "", err)
	}
	return nil
}

// FinalizeRun persists the finished statistics. A second finalize is
// rejected.
func (s *Store) FinalizeRun(ctx context.Context, run *reconcile.RunMetadata) error {
	if run.FinishedAt == nil {
		return errors.NewConfigError("store", "finalize requires a finish time", nil)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?, listings_found = ?, listings_new = ?,
			listings_updated = ?, errors = ?, delisted_count = ?, source_used = ?
		WHERE run_id = ? AND finished_at IS NULL`,
		run.FinishedAt.UTC().UnixNano(), run.ListingsFound, run.ListingsNew,
		run.ListingsUpdated, run.Errors, run.DelistedCount, string(run.SourceUsed),
		run.RunID)
	if err != nil {
		return errors.WrapStore("finalize run", "", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WrapStore("finalize run", "", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM runs WHERE run_id = ?)", run.RunID).Scan(&exists); err != nil {
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, region, kind, started_at, finished_at,
			listings_found, listings_new, listings_updated,
			errors, delisted_count, source_used
		FROM runs WHERE region = ? AND kind = ?
		ORDER BY started_at DESC LIMIT ?`,
		scope.Region, string(scope.Kind), limit)
	if err != nil {
		return nil, errors.WrapStore("recent runs", "", err)
	}
	defer rows.Close()

	var out []reconcile.RunMetadata
	for rows.Next() {
		var run reconcile.RunMetadata
		var kind, sourceUsed string
		var startedAt int64
		var finishedAt sql.NullInt64
		if err := rows.Scan(&run.RunID, &run.Scope.Region, &kind, &startedAt, &finishedAt,
			&run.ListingsFound, &run.ListingsNew, &run.ListingsUpdated,
			&run.Errors, &run.DelistedCount, &sourceUsed); err != nil {
			return nil, errors.WrapStore("recent runs", "", err)
		}
		run.Scope.Kind = listing.Kind(kind)
		run.StartedAt = time.Unix(0, startedAt).UTC()
		if finishedAt.Valid {
			t := time.Unix(0, finishedAt.Int64).UTC()
			run.FinishedAt = &t
		}
		run.SourceUsed = reconcile.SourceUsed(sourceUsed)
		out = append(out, run)
	}
	return out, rows.Err()
}

// fieldArg converts an optional field to a driver argument, mapping missing
// values to NULL.
func fieldArg[T any](f listing.Field[T]) any {
	if v, ok := f.Get(); ok {
		return v
	}
	return nil
}

// scanProperty reads one property row. NULL columns come back as absent
// fields; the merge rules treat null and absent identically, so the
// distinction is not persisted.
func scanProperty(row *sql.Row) (*reconcile.PropertyRecord, error) {
	var rec reconcile.PropertyRecord
	var kind, status, photos string
	var firstSeen, lastSeen int64
	var postalCode, energyLabel, description sql.NullString
	var price, rooms, bedrooms, constructionYear sql.NullInt64
	var livingArea, plotArea sql.NullFloat64

	err := row.Scan(&rec.ID, &rec.SourceID, &rec.URL, &rec.Address, &rec.Region, &kind,
		&postalCode, &price, &livingArea, &plotArea, &rooms, &bedrooms,
		&constructionYear, &energyLabel, &description, &photos,
		&status, &firstSeen, &lastSeen)
	if err != nil {
		return nil, err
	}

	rec.Kind = listing.Kind(kind)
	rec.Status = reconcile.Status(status)
	rec.FirstSeenAt = time.Unix(0, firstSeen).UTC()
	rec.LastSeenAt = time.Unix(0, lastSeen).UTC()
	rec.PostalCode = fieldFromString(postalCode)
	rec.EnergyLabel = fieldFromString(energyLabel)
	rec.Description = fieldFromString(description)
	rec.Price = fieldFromInt(price)
	rec.Rooms = fieldFromInt(rooms)
	rec.Bedrooms = fieldFromInt(bedrooms)
	rec.ConstructionYear = fieldFromInt(constructionYear)
	if livingArea.Valid {
		rec.LivingArea = listing.Value(livingArea.Float64)
	}
	if plotArea.Valid {
		rec.PlotArea = listing.Value(plotArea.Float64)
	}
	if photos != "" && photos != "null" {
		if err := json.Unmarshal([]byte(photos), &rec.PhotoURLs); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func fieldFromString(v sql.NullString) listing.Field[string] {
	if !v.Valid {
		return listing.Absent[string]()
	}
	return listing.Value(v.String)
}

func fieldFromInt(v sql.NullInt64) listing.Field[int] {
	if !v.Valid {
		return listing.Absent[int]()
	}
	return listing.Value(int(v.Int64))
}
