// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package engine

import (
	"time"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// State is the run-state of a PendingTransaction (§4.3.1).
type State uint8

const (
	StateExecuting State = iota
	StateComputing
	StateAwaitingAsync
	StateFinalizing
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateExecuting:
		return "Executing"
	case StateComputing:
		return "Computing"
	case StateAwaitingAsync:
		return "AwaitingAsync"
	case StateFinalizing:
		return "Finalizing"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// TransactionKind distinguishes the three sources of a transaction:
// a user edit (touches undo/redo), an undo/redo replay (user-like but
// does not itself push new undo), and a server/remote transaction
// (propagates dirty bounds only).
type TransactionKind uint8

const (
	TransactionKindUser TransactionKind = iota
	TransactionKindUndoRedo
	TransactionKindServer
)

// PendingTransaction is the mutable run-state threaded through one
// batch of operations from submission to Finalizing/Aborted.
type PendingTransaction struct {
	ID   string
	Kind TransactionKind

	State State

	OperationQueue []Operation

	ForwardOperations []Operation
	ReverseOperations []Operation

	CellsToCompute []grid.SheetPos
	seen           map[grid.SheetPos]bool

	// PendingAsync holds sheet positions whose runner dispatch is in
	// flight; RunningAsync receives the same positions at dispatch and
	// loses them on completion. No concurrency cap exists, so no
	// dispatched run waits in a queue.
	PendingAsync map[grid.SheetPos]bool
	RunningAsync map[grid.SheetPos]bool

	// dependentPending tracks cells found, during dependency discovery,
	// to depend on another still-pending async cell; re-examined after
	// the next async completion (§4.3.3).
	dependentPending map[grid.SheetPos]bool

	CurrentSheetPos *grid.SheetPos
	WaitingForAsync *grid.Language

	DirtySheets map[grid.SheetID]bool

	AbortReason string

	StartedAt time.Time
}

// NewTransaction starts a fresh PendingTransaction in the Executing
// state with the given initial operations queued.
func NewTransaction(id string, kind TransactionKind, ops []Operation) *PendingTransaction {
	return &PendingTransaction{
		ID:               id,
		Kind:             kind,
		State:            StateExecuting,
		OperationQueue:   append([]Operation{}, ops...),
		seen:             make(map[grid.SheetPos]bool),
		PendingAsync:     make(map[grid.SheetPos]bool),
		RunningAsync:     make(map[grid.SheetPos]bool),
		dependentPending: make(map[grid.SheetPos]bool),
		DirtySheets:      make(map[grid.SheetID]bool),
		StartedAt:        time.Time{},
	}
}

// markSeen records sp as enqueued for this transaction and reports
// whether it was newly seen (the caller should enqueue only then).
func (t *PendingTransaction) markSeen(sp grid.SheetPos) bool {
	if t.seen[sp] {
		return false
	}
	t.seen[sp] = true
	return true
}

func (t *PendingTransaction) markDirty(sp grid.SheetPos) {
	t.DirtySheets[sp.Sheet] = true
}

// PopOperation removes and returns the next queued operation.
func (t *PendingTransaction) PopOperation() (Operation, bool) {
	if len(t.OperationQueue) == 0 {
		return Operation{}, false
	}
	op := t.OperationQueue[0]
	t.OperationQueue = t.OperationQueue[1:]
	return op, true
}

// PushOperation appends an operation to the queue (cascading deletes,
// per §4.3.2 step 1).
func (t *PendingTransaction) PushOperation(op Operation) {
	t.OperationQueue = append(t.OperationQueue, op)
}

// PopCellToCompute removes and returns the next pending compute target.
func (t *PendingTransaction) PopCellToCompute() (grid.SheetPos, bool) {
	if len(t.CellsToCompute) == 0 {
		return grid.SheetPos{}, false
	}
	sp := t.CellsToCompute[0]
	t.CellsToCompute = t.CellsToCompute[1:]
	return sp, true
}

// Summary is the dirty-set reported to the renderer/frontend once a
// transaction finalizes.
type Summary struct {
	DirtySheets []grid.SheetID
}

// BuildSummary flattens the transaction's dirty-sheet set.
func (t *PendingTransaction) BuildSummary() Summary {
	out := Summary{}
	for id := range t.DirtySheets {
		out.DirtySheets = append(out.DirtySheets, id)
	}
	return out
}
