// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package store implements the durable registry of files and the
// workers currently assigned to them (spec.md §4.5/§6): what
// internal/controller needs to survive its own restart without losing
// track of in-flight work.
package store

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// WorkerRecord is one row of the worker registry: the controller's
// durable view of a spawned worker, independent of whatever container
// scheduler actually runs it.
type WorkerRecord struct {
	bun.BaseModel `bun:"table:workers,alias:w"`

	WorkerID   string    `bun:"worker_id,pk"`
	FileID     string    `bun:"file_id,notnull"`
	TeamID     string    `bun:"team_id,notnull"`
	State      string    `bun:"state,notnull"` // spawning | active | shutting_down | terminated
	SpawnedAt  time.Time `bun:"spawned_at,notnull"`
	LastHealth time.Time `bun:"last_health"`
}

// FileRecord is one row of the file registry: the last known sequence
// number and thumbnail key for a file, the bookkeeping a worker's
// shutdown sequence updates.
type FileRecord struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	FileID         string    `bun:"file_id,pk"`
	TeamID         string    `bun:"team_id,notnull"`
	SequenceNumber int64     `bun:"sequence_number,notnull,default:0"`
	ThumbnailKey   string    `bun:"thumbnail_key"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

var (
	_ Store = (*PGStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Store persists the worker and file registries the controller
// consults across restarts.
type Store interface {
	UpsertWorker(ctx context.Context, rec WorkerRecord) error
	WorkerByID(ctx context.Context, workerID string) (WorkerRecord, error)
	WorkersByFile(ctx context.Context, fileID string) ([]WorkerRecord, error)
	DeleteWorker(ctx context.Context, workerID string) error

	UpsertFile(ctx context.Context, rec FileRecord) error
	FileByID(ctx context.Context, fileID string) (FileRecord, error)

	Close() error
}
