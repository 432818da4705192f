// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const storeSchemaSQL = `
CREATE TABLE IF NOT EXISTS workers (
	worker_id   TEXT PRIMARY KEY,
	file_id     TEXT NOT NULL,
	team_id     TEXT NOT NULL,
	state       TEXT NOT NULL,
	spawned_at  TEXT NOT NULL,
	last_health TEXT
);
CREATE INDEX IF NOT EXISTS idx_workers_file_id ON workers(file_id);

CREATE TABLE IF NOT EXISTS files (
	file_id         TEXT PRIMARY KEY,
	team_id         TEXT NOT NULL,
	sequence_number INTEGER NOT NULL DEFAULT 0,
	thumbnail_key   TEXT,
	updated_at      TEXT NOT NULL
);
`

// SQLiteStore is the single-node Store backend, the same role
// internal/queue.SQLiteQueue plays for the task queue — a dev/small
// deployment doesn't need Postgres to run the controller at all.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a WAL-mode SQLite database at path
// and ensures the registry tables exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	if _, err := db.Exec(storeSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) UpsertWorker(ctx context.Context, rec WorkerRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (worker_id, file_id, team_id, state, spawned_at, last_health)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET state = excluded.state, last_health = excluded.last_health`,
		rec.WorkerID, rec.FileID, rec.TeamID, rec.State,
		rec.SpawnedAt.Format(time.RFC3339Nano), formatNullableTime(rec.LastHealth))
	if err != nil {
		return fmt.Errorf("store: upsert worker %s: %w", rec.WorkerID, err)
	}
	return nil
}

func (s *SQLiteStore) WorkerByID(ctx context.Context, workerID string) (WorkerRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT worker_id, file_id, team_id, state, spawned_at, last_health FROM workers WHERE worker_id = ?`, workerID)
	rec, err := scanWorker(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return WorkerRecord{}, ErrNotFound
		}
		return WorkerRecord{}, fmt.Errorf("store: worker %s: %w", workerID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) WorkersByFile(ctx context.Context, fileID string) ([]WorkerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT worker_id, file_id, team_id, state, spawned_at, last_health FROM workers WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, fmt.Errorf("store: workers for file %s: %w", fileID, err)
	}
	defer rows.Close()

	var out []WorkerRecord
	for rows.Next() {
		rec, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan worker row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteWorker(ctx context.Context, workerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workers WHERE worker_id = ?`, workerID)
	if err != nil {
		return fmt.Errorf("store: delete worker %s: %w", workerID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertFile(ctx context.Context, rec FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (file_id, team_id, sequence_number, thumbnail_key, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			sequence_number = excluded.sequence_number,
			thumbnail_key = excluded.thumbnail_key,
			updated_at = excluded.updated_at`,
		rec.FileID, rec.TeamID, rec.SequenceNumber, rec.ThumbnailKey, rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: upsert file %s: %w", rec.FileID, err)
	}
	return nil
}

func (s *SQLiteStore) FileByID(ctx context.Context, fileID string) (FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT file_id, team_id, sequence_number, thumbnail_key, updated_at FROM files WHERE file_id = ?`, fileID)
	var rec FileRecord
	var updatedAt string
	err := row.Scan(&rec.FileID, &rec.TeamID, &rec.SequenceNumber, &rec.ThumbnailKey, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return FileRecord{}, ErrNotFound
		}
		return FileRecord{}, fmt.Errorf("store: file %s: %w", fileID, err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (WorkerRecord, error) {
	var rec WorkerRecord
	var spawnedAt string
	var lastHealth sql.NullString
	if err := row.Scan(&rec.WorkerID, &rec.FileID, &rec.TeamID, &rec.State, &spawnedAt, &lastHealth); err != nil {
		return WorkerRecord{}, err
	}
	rec.SpawnedAt, _ = time.Parse(time.RFC3339Nano, spawnedAt)
	if lastHealth.Valid {
		rec.LastHealth, _ = time.Parse(time.RFC3339Nano, lastHealth.String)
	}
	return rec, nil
}

func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
