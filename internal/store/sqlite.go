package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/wom-group/openings-cli/internal/dates"
	"github.com/wom-group/openings-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	city          TEXT NOT NULL,
	cutoff        DATETIME NOT NULL,
	params        TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	record_count  INTEGER NOT NULL DEFAULT 0,
	source_counts TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_records (
	id       TEXT PRIMARY KEY,
	run_id   TEXT NOT NULL REFERENCES runs(id),
	position INTEGER NOT NULL,
	record   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	coord      TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_city ON runs(city);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_records_run_id ON run_records(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, city string, cutoff time.Time, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, city, cutoff, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, city, cutoff, string(paramsJSON), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		City:      city,
		Cutoff:    cutoff,
		Params:    params,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, sourceCounts map[model.Source]int, recordCount int) error {
	countsJSON, err := json.Marshal(sourceCounts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source counts")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, record_count = ?, source_counts = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), recordCount, string(countsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, city, cutoff, params, status, record_count, source_counts, created_at, updated_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, city, cutoff, params, status, record_count, source_counts, created_at, updated_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// storedRecord is the serialized record shape. Tags flatten to a sorted
// list and the opening date to an ISO calendar date, so rows stay
// readable under json_extract.
type storedRecord struct {
	Name        string   `json:"name"`
	Address     string   `json:"full_address"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	OpeningDate string   `json:"opening_date,omitempty"`
	Source      string   `json:"source"`
	Confidence  string   `json:"confidence"`
	LastEdited  string   `json:"last_edit,omitempty"`
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, runID string, records []*model.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save records")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_records (id, run_id, position, record) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert record")
	}
	defer stmt.Close()

	for i, r := range records {
		payload, err := json.Marshal(storedRecord{
			Name:        r.Name,
			Address:     r.Address,
			Description: r.Description,
			Tags:        r.Tags.Sorted(),
			OpeningDate: r.OpeningDateISO(),
			Source:      string(r.Source),
			Confidence:  string(r.Confidence),
			LastEdited:  r.LastEdited,
		})
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal record")
		}
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), runID, i, string(payload)); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %d for run %s", i, runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save records")
}

func (s *SQLiteStore) GetRecords(ctx context.Context, runID string) ([]*model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM run_records WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get records")
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}

		var sr storedRecord
		if err := json.Unmarshal([]byte(payload), &sr); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}

		records = append(records, &model.Record{
			Name:        sr.Name,
			Address:     sr.Address,
			Description: sr.Description,
			Tags:        model.NewTagSet(sr.Tags...),
			OpeningDate: dates.ParseOpeningDate(sr.OpeningDate),
			Source:      model.Source(sr.Source),
			Confidence:  model.Confidence(sr.Confidence),
			LastEdited:  sr.LastEdited,
		})
	}
	return records, eris.Wrap(rows.Err(), "sqlite: get records iterate")
}

// geocodeKey rounds coordinates to ~1m precision so near-identical points
// share a cache row.
func geocodeKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}

func (s *SQLiteStore) LookupGeocode(ctx context.Context, lat, lon float64) (string, bool) {
	var address string
	err := s.db.QueryRowContext(ctx,
		`SELECT address FROM geocode_cache WHERE coord = ?`,
		geocodeKey(lat, lon),
	).Scan(&address)
	if err != nil {
		return "", false
	}
	return address, true
}

func (s *SQLiteStore) StoreGeocode(ctx context.Context, lat, lon float64, address string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (coord, address, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(coord) DO UPDATE SET address = excluded.address, fetched_at = excluded.fetched_at`,
		geocodeKey(lat, lon), address, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: store geocode")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var paramsJSON string
	var countsJSON sql.NullString

	err := row.Scan(&r.ID, &r.City, &r.Cutoff, &paramsJSON, &r.Status, &r.RecordCount, &countsJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	if countsJSON.Valid && countsJSON.String != "" {
		if err := json.Unmarshal([]byte(countsJSON.String), &r.SourceCounts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal source counts")
		}
	}
	return &r, nil
}

// GeocodeCache adapts the store to the pipeline's reverse-geocode cache
// interface.
type GeocodeCache struct {
	backing Store
}

// NewGeocodeCache wraps a store as a reverse-geocode cache.
func NewGeocodeCache(s Store) GeocodeCache {
	return GeocodeCache{backing: s}
}

func (g GeocodeCache) Lookup(ctx context.Context, lat, lon float64) (string, bool) {
	return g.backing.LookupGeocode(ctx, lat, lon)
}

func (g GeocodeCache) Store(ctx context.Context, lat, lon float64, address string) error {
	return g.backing.StoreGeocode(ctx, lat, lon, address)
}
