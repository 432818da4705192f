// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package queue implements the task queue a worker drains and the
// controller polls for pending file ids (spec.md §6). Transaction
// batches are the payload; PendingFileIDs is the distinct-file-ids
// projection internal/controller.Queue needs.
package queue

import (
	"context"
	"time"

	"github.com/quadratic-labs/qd-engine/internal/engine"
)

// Task is one queued unit of work: a transaction's operations bound to
// the file and the actor that submitted it.
type Task struct {
	ID              string
	FileID          string
	TeamID          string
	TransactionName string
	Operations      []engine.Operation
	EnqueuedAt      time.Time
}

// Queue is the durable task queue both the controller and a worker
// depend on: the controller only ever calls PendingFileIDs, a worker
// additionally enqueues and drains tasks for its own file.
type Queue interface {
	// Enqueue appends a task, assigning it an id and timestamp.
	Enqueue(ctx context.Context, fileID, teamID, transactionName string, ops []engine.Operation) (Task, error)

	// Dequeue returns the oldest still-pending task for fileID without
	// removing it (Ack does that), or ok=false if none remain.
	Dequeue(ctx context.Context, fileID string) (task Task, ok bool, err error)

	// Ack removes a dequeued task permanently once its transaction has
	// committed.
	Ack(ctx context.Context, taskID string) error

	// PendingFileIDs returns the distinct file ids with at least one
	// task that has not been Ack'd — the controller's scan-loop input.
	// Satisfies internal/controller.Queue.
	PendingFileIDs(ctx context.Context) ([]string, error)
}
