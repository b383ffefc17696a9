// Package sqlite persists scan records inside a SQLite database so
// completed scan results survive a process restart.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dirscan/internal/scan"
	"dirscan/internal/storage"

	_ "modernc.org/sqlite"
)

// Store implements storage.ScanStore on SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes (or reuses) a SQLite database at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS scans (
        id TEXT PRIMARY KEY,
        path TEXT NOT NULL,
        status TEXT NOT NULL,
        created_at INTEGER NOT NULL,
        completed_at INTEGER NOT NULL DEFAULT 0,
        error TEXT NOT NULL DEFAULT '',
        options TEXT NOT NULL DEFAULT '{}',
        results TEXT
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at);
`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// results is the JSON shape of the frozen result views.
type results struct {
	Tree       *scan.DirectoryEntry   `json:"tree,omitempty"`
	Statistics *scan.Statistics       `json:"statistics,omitempty"`
	Duplicates []*scan.DuplicateGroup `json:"duplicates,omitempty"`
	Skipped    []*scan.SkippedEntry   `json:"skipped,omitempty"`
}

// Put inserts or updates a scan record.
func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	options, err := json.Marshal(rec.Options)
	if err != nil {
		return fmt.Errorf("marshal options for %s: %w", rec.ID, err)
	}

	var resultsJSON sql.NullString
	if rec.Status == scan.StatusCompleted {
		payload, marshalErr := json.Marshal(results{
			Tree:       rec.Tree,
			Statistics: rec.Statistics,
			Duplicates: rec.Duplicates,
			Skipped:    rec.Skipped,
		})
		if marshalErr != nil {
			return fmt.Errorf("marshal results for %s: %w", rec.ID, marshalErr)
		}
		resultsJSON = sql.NullString{String: string(payload), Valid: true}
	}

	var completedAt int64
	if !rec.CompletedAt.IsZero() {
		completedAt = rec.CompletedAt.UnixNano()
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO scans(id, path, status, created_at, completed_at, error, options, results)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
        path=excluded.path,
        status=excluded.status,
        completed_at=excluded.completed_at,
        error=excluded.error,
        options=excluded.options,
        results=excluded.results
`, rec.ID, rec.Path, string(rec.Status), rec.CreatedAt.UnixNano(), completedAt, rec.Error, string(options), resultsJSON)
	if err != nil {
		return fmt.Errorf("upsert scan %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns a scan record by id.
func (s *Store) Get(ctx context.Context, id string) (*storage.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, path, status, created_at, completed_at, error, options, results
FROM scans WHERE id = ?
`, id)

	rec, err := scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query scan %s: %w", id, err)
	}
	return rec, true, nil
}

// List returns all scan records ordered by creation time, oldest first.
func (s *Store) List(ctx context.Context) ([]*storage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, path, status, created_at, completed_at, error, options, results
FROM scans ORDER BY created_at ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		rec, scanErr := scanRow(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan record: %w", scanErr)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return records, nil
}

// Delete removes a scan record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete scan %s: %w", id, err)
	}
	return nil
}

func scanRow(scanFn func(dest ...any) error) (*storage.Record, error) {
	var (
		id          string
		path        string
		status      string
		createdAt   int64
		completedAt int64
		errDetail   string
		options     string
		resultsJSON sql.NullString
	)
	if err := scanFn(&id, &path, &status, &createdAt, &completedAt, &errDetail, &options, &resultsJSON); err != nil {
		return nil, err
	}

	rec := &storage.Record{
		ID:        id,
		Path:      path,
		Status:    scan.Status(status),
		CreatedAt: time.Unix(0, createdAt),
		Error:     errDetail,
	}
	if completedAt != 0 {
		rec.CompletedAt = time.Unix(0, completedAt)
	}
	if err := json.Unmarshal([]byte(options), &rec.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if resultsJSON.Valid {
		var res results
		if err := json.Unmarshal([]byte(resultsJSON.String), &res); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
		rec.Tree = res.Tree
		rec.Statistics = res.Statistics
		rec.Duplicates = res.Duplicates
		rec.Skipped = res.Skipped
	}
	return rec, nil
}
