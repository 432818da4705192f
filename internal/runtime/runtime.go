// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quadratic-labs/qd-engine/internal/engine"
)

// TransactionRequest is the per-transaction payload a worker receives
// from the queue, per spec.md §4.6 step 1.
type TransactionRequest struct {
	Operations      []engine.Operation
	Cursor          string
	TransactionName string
	TeamID          string
	Token           string
	ConnectionURL   string
}

// Worker drives the §4.6 lifecycle for a single file: fetch snapshot,
// open the JS sub-server once, then loop over transactions.
type Worker struct {
	FileID    string
	GC        *engine.GridController
	Scheduler *engine.Scheduler
	JS        *JSServer
	Undo      *engine.UndoStacks
	Log       *slog.Logger
}

// NewWorker wires a Worker around an already-loaded grid controller
// and dispatcher; the caller (cmd/worker) is responsible for fetching
// the file snapshot from the presigned URL before constructing this.
func NewWorker(fileID string, gc *engine.GridController, dispatcher engine.Dispatcher, js *JSServer, mux *GetCellsMultiplexer, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	sched := engine.NewScheduler(gc, dispatcher)
	sched.GetCells = mux.GetCells()
	return &Worker{
		FileID:    fileID,
		GC:        gc,
		Scheduler: sched,
		JS:        js,
		Undo:      engine.NewUndoStacks(),
		Log:       log,
	}
}

// RunTransaction implements §4.6's per-transaction steps 1-5, short of
// the get_cells multiplexer's own goroutine lifecycle (the caller
// starts GetCellsMultiplexer.Run alongside the worker and cancels it
// on process shutdown, not per transaction, since it is the single
// long-lived task the step 3 language describes).
func (w *Worker) RunTransaction(ctx context.Context, req TransactionRequest) (string, error) {
	txnID := uuid.NewString()
	txn := engine.NewTransaction(txnID, engine.TransactionKindUser, req.Operations)

	w.Log.Info("starting transaction", "file_id", w.FileID, "transaction_id", txnID, "name", req.TransactionName)

	if err := w.Scheduler.Run(ctx, txn); err != nil {
		return txnID, fmt.Errorf("runtime: transaction %s failed: %w", txnID, err)
	}

	w.Undo.Commit(txn)
	return txnID, nil
}
