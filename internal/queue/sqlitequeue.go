// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package queue

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quadratic-labs/qd-engine/internal/engine"
)

// OpenSQLite opens (or creates) a WAL-mode SQLite database at path,
// the same DSN shape mycelian-memory's sqlite adapter uses.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("queue: create %s: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: ping %s: %w", path, err)
	}
	return db, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id    TEXT PRIMARY KEY,
	file_id    TEXT NOT NULL,
	payload    BLOB NOT NULL,
	enqueued_at TEXT NOT NULL,
	acked      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_file_pending ON tasks(file_id, acked, enqueued_at);
`

// SQLiteQueue persists tasks to a local SQLite file — the durable,
// single-node queue backend a worker's own process or a small
// controller deployment runs against, matching the pack's own
// "sqlite for the dev/embedded path" convention.
type SQLiteQueue struct {
	db *sql.DB
}

// NewSQLiteQueue opens db and ensures the tasks table exists.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("queue: migrate schema: %w", err)
	}
	return &SQLiteQueue{db: db}, nil
}

func (q *SQLiteQueue) Enqueue(ctx context.Context, fileID, teamID, transactionName string, ops []engine.Operation) (Task, error) {
	t := Task{
		ID:              uuid.NewString(),
		FileID:          fileID,
		TeamID:          teamID,
		TransactionName: transactionName,
		Operations:      ops,
		EnqueuedAt:      time.Now().UTC(),
	}
	payload, err := encodeTask(t)
	if err != nil {
		return Task{}, err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, file_id, payload, enqueued_at, acked) VALUES (?, ?, ?, ?, 0)`,
		t.ID, t.FileID, payload, t.EnqueuedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Task{}, fmt.Errorf("queue: enqueue %s: %w", t.ID, err)
	}
	return t, nil
}

func (q *SQLiteQueue) Dequeue(ctx context.Context, fileID string) (Task, bool, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT payload FROM tasks WHERE file_id = ? AND acked = 0 ORDER BY enqueued_at ASC LIMIT 1`, fileID)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return Task{}, false, nil
		}
		return Task{}, false, fmt.Errorf("queue: dequeue file %s: %w", fileID, err)
	}
	t, err := decodeTask(payload)
	if err != nil {
		return Task{}, false, err
	}
	return t, true, nil
}

func (q *SQLiteQueue) Ack(ctx context.Context, taskID string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE tasks SET acked = 1 WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("queue: ack %s: %w", taskID, err)
	}
	return nil
}

func (q *SQLiteQueue) PendingFileIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT DISTINCT file_id FROM tasks WHERE acked = 0`)
	if err != nil {
		return nil, fmt.Errorf("queue: pending file ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("queue: scan pending file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
