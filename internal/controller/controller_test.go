// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package controller

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadratic-labs/qd-engine/internal/filelock"
)

type fakeQueue struct {
	pending []string
}

func (q *fakeQueue) PendingFileIDs(ctx context.Context) ([]string, error) {
	return q.pending, nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	active   map[string]bool
	spawned  []string
	deleted  []string
	spawnErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{active: make(map[string]bool)}
}

func (s *fakeScheduler) ActiveFileIDs(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.active))
	for k, v := range s.active {
		out[k] = v
	}
	return out, nil
}

func (s *fakeScheduler) Spawn(ctx context.Context, spec WorkerSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spawnErr != nil {
		return "", s.spawnErr
	}
	s.active[spec.FileID] = true
	s.spawned = append(s.spawned, spec.FileID)
	return "worker-" + spec.FileID, nil
}

func (s *fakeScheduler) MarkForDeletion(ctx context.Context, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, workerID)
	return nil
}

func newTestController(pending []string, sched *fakeScheduler) *Controller {
	return NewController(&fakeQueue{pending: pending}, sched, NewCreateLocks(filelock.NewMemoryRegistry()), nil)
}

func TestScanOnceSpawnsWorkerForPendingFile(t *testing.T) {
	sched := newFakeScheduler()
	c := newTestController([]string{"file-1"}, sched)

	err := c.ScanOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"file-1"}, sched.spawned)
	assert.Equal(t, 1, c.CountActiveWorkers())
}

func TestScanOnceSkipsFileWithActiveWorker(t *testing.T) {
	sched := newFakeScheduler()
	sched.active["file-1"] = true
	c := newTestController([]string{"file-1"}, sched)

	err := c.ScanOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, sched.spawned)
}

func TestScanOnceShutsDownWorkersWithNoPendingTasks(t *testing.T) {
	sched := newFakeScheduler()
	c := newTestController([]string{"file-1"}, sched)
	require.NoError(t, c.ScanOnce(context.Background()))
	require.Equal(t, 1, c.CountActiveWorkers())

	c.Queue = &fakeQueue{pending: nil}
	require.NoError(t, c.ScanOnce(context.Background()))

	assert.Equal(t, 0, c.CountActiveWorkers())
	assert.Len(t, sched.deleted, 1)
}

func TestTrySpawnDoesNotDoubleSpawnWhenLockHeld(t *testing.T) {
	sched := newFakeScheduler()
	locks := NewCreateLocks(filelock.NewMemoryRegistry())
	c := NewController(&fakeQueue{pending: []string{"file-1"}}, sched, locks, nil)

	granted, err := locks.TryAcquire("file-1", "another-scan")
	require.NoError(t, err)
	require.True(t, granted)

	require.NoError(t, c.trySpawn(context.Background(), "file-1"))
	assert.Empty(t, sched.spawned)
}
