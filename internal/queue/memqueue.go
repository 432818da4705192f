// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quadratic-labs/qd-engine/internal/engine"
)

// MemQueue is an in-process Queue, for unit tests and single-process
// development runs where a durable backend would be overkill.
type MemQueue struct {
	mu    sync.Mutex
	tasks map[string]Task // task id -> task, still-pending only
	order []string        // task ids, oldest first, per file id below
}

// NewMemQueue builds an empty MemQueue.
func NewMemQueue() *MemQueue {
	return &MemQueue{tasks: make(map[string]Task)}
}

func (q *MemQueue) Enqueue(_ context.Context, fileID, teamID, transactionName string, ops []engine.Operation) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := Task{
		ID:              uuid.NewString(),
		FileID:          fileID,
		TeamID:          teamID,
		TransactionName: transactionName,
		Operations:      ops,
		EnqueuedAt:      time.Now().UTC(),
	}
	q.tasks[t.ID] = t
	q.order = append(q.order, t.ID)
	return t, nil
}

func (q *MemQueue) Dequeue(_ context.Context, fileID string) (Task, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		t, ok := q.tasks[id]
		if ok && t.FileID == fileID {
			return t, true, nil
		}
	}
	return Task{}, false, nil
}

func (q *MemQueue) Ack(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.tasks, taskID)
	kept := q.order[:0]
	for _, id := range q.order {
		if id != taskID {
			kept = append(kept, id)
		}
	}
	q.order = kept
	return nil
}

func (q *MemQueue) PendingFileIDs(_ context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool)
	var ids []string
	for _, id := range q.order {
		fileID := q.tasks[id].FileID
		if !seen[fileID] {
			seen[fileID] = true
			ids = append(ids, fileID)
		}
	}
	return ids, nil
}
