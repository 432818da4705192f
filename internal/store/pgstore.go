// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("store: not found")

// PGConfig configures the Postgres connection pool, mirroring the
// pack's own bun/pgdriver wiring.
type PGConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPGConfig fills in the pool sizing the pack's own db.go uses.
func DefaultPGConfig(dsn string) *PGConfig {
	return &PGConfig{
		DSN:             dsn,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// PGStore persists the worker/file registries to Postgres via bun,
// grounded on smilemakc-mbflow's `storage.NewDB` connector-and-pool
// construction and its repository-per-table query style.
type PGStore struct {
	db *bun.DB
}

// NewPGStore opens a pooled Postgres connection and ensures the
// registry tables exist.
func NewPGStore(ctx context.Context, cfg *PGConfig) (*PGStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: nil PGConfig")
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithTimeout(30*time.Second),
		pgdriver.WithDialTimeout(10*time.Second),
		pgdriver.WithReadTimeout(10*time.Second),
		pgdriver.WithWriteTimeout(10*time.Second),
	)
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	db := bun.NewDB(sqldb, pgdialect.New())
	db.RegisterModel((*WorkerRecord)(nil), (*FileRecord)(nil))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	s := &PGStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*WorkerRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("store: create workers table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*FileRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("store: create files table: %w", err)
	}
	return nil
}

func (s *PGStore) UpsertWorker(ctx context.Context, rec WorkerRecord) error {
	_, err := s.db.NewInsert().
		Model(&rec).
		On("CONFLICT (worker_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("last_health = EXCLUDED.last_health").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: upsert worker %s: %w", rec.WorkerID, err)
	}
	return nil
}

func (s *PGStore) WorkerByID(ctx context.Context, workerID string) (WorkerRecord, error) {
	var rec WorkerRecord
	err := s.db.NewSelect().Model(&rec).Where("worker_id = ?", workerID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WorkerRecord{}, ErrNotFound
		}
		return WorkerRecord{}, fmt.Errorf("store: worker %s: %w", workerID, err)
	}
	return rec, nil
}

func (s *PGStore) WorkersByFile(ctx context.Context, fileID string) ([]WorkerRecord, error) {
	var recs []WorkerRecord
	err := s.db.NewSelect().Model(&recs).Where("file_id = ?", fileID).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: workers for file %s: %w", fileID, err)
	}
	return recs, nil
}

func (s *PGStore) DeleteWorker(ctx context.Context, workerID string) error {
	_, err := s.db.NewDelete().Model((*WorkerRecord)(nil)).Where("worker_id = ?", workerID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: delete worker %s: %w", workerID, err)
	}
	return nil
}

func (s *PGStore) UpsertFile(ctx context.Context, rec FileRecord) error {
	_, err := s.db.NewInsert().
		Model(&rec).
		On("CONFLICT (file_id) DO UPDATE").
		Set("sequence_number = EXCLUDED.sequence_number").
		Set("thumbnail_key = EXCLUDED.thumbnail_key").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: upsert file %s: %w", rec.FileID, err)
	}
	return nil
}

func (s *PGStore) FileByID(ctx context.Context, fileID string) (FileRecord, error) {
	var rec FileRecord
	err := s.db.NewSelect().Model(&rec).Where("file_id = ?", fileID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileRecord{}, ErrNotFound
		}
		return FileRecord{}, fmt.Errorf("store: file %s: %w", fileID, err)
	}
	return rec, nil
}

func (s *PGStore) Close() error {
	return s.db.Close()
}
