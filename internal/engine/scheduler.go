// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package engine

import (
	"context"
	"fmt"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// GetCellsFunc is the host callback a language runner (C4) uses to read
// cells while it runs; the engine is responsible for recording the
// ranges it touches into the returned CellsAccessed.
type GetCellsFunc func(a1 string) (grid.Value, grid.SheetRect, error)

// RunRequest is what the scheduler hands a runner for one code cell.
type RunRequest struct {
	TransactionID string
	SheetPos      grid.SheetPos
	Language      grid.Language
	Code          string
	GetCells      GetCellsFunc

	// OnAsyncComplete is set by the scheduler before dispatch; a runner
	// that suspends (Python, JavaScript) calls it exactly once, from
	// whatever goroutine eventually finishes, to deliver the completed
	// CodeRun back through the async-callback contract (§4.3.5). Runners
	// that finish synchronously (Formula) never call it.
	OnAsyncComplete func(run *grid.CodeRun)
}

// DispatchOutcome reports whether a runner finished synchronously.
type DispatchOutcome struct {
	// Async is true when the runner suspended on get_cells and will
	// complete later through Scheduler.ResumeAsync.
	Async bool
	Run   *grid.CodeRun
}

// Dispatcher sends a RunRequest to the matching language runner.
// internal/runners implements this; the engine only depends on the
// interface to avoid an import cycle back into C4.
type Dispatcher interface {
	Dispatch(ctx context.Context, req RunRequest) (DispatchOutcome, error)
}

// Scheduler drives one PendingTransaction through §4.3.2's loop.
type Scheduler struct {
	GC         *GridController
	Dispatcher Dispatcher

	// GetCells resolves a runner's get_cells(a1) call. The worker
	// runtime (C6) sets this to its GetCellsMultiplexer's entry point
	// before running any transaction; left nil it falls back to a
	// stub that always errors, since no A1 parser lives in this
	// package (see getCellsFor).
	GetCells GetCellsFunc
}

// NewScheduler builds a Scheduler bound to a grid controller and a
// language-runner dispatcher.
func NewScheduler(gc *GridController, d Dispatcher) *Scheduler {
	return &Scheduler{GC: gc, Dispatcher: d}
}

// Run drives txn forward until it finalizes, aborts, or suspends
// waiting on an async runner (in which case Run returns nil and the
// caller must later call ResumeAsync when the runner completes).
func (s *Scheduler) Run(ctx context.Context, txn *PendingTransaction) error {
	for {
		select {
		case <-ctx.Done():
			s.cancel(txn)
			return &CancelledError{TransactionID: txn.ID}
		default:
		}

		if len(txn.OperationQueue) > 0 {
			txn.State = StateExecuting
			op, _ := txn.PopOperation()
			if err := s.GC.Apply(txn, op); err != nil {
				return s.abort(txn, err.Error())
			}
			continue
		}

		txn.State = StateComputing
		sp, ok := txn.PopCellToCompute()
		if !ok {
			resumed := txn.SettleDependentPending()
			if len(resumed) > 0 {
				txn.CellsToCompute = append(txn.CellsToCompute, resumed...)
				continue
			}
			if len(txn.PendingAsync) > 0 {
				txn.State = StateAwaitingAsync
				return nil
			}
			return s.finalize(txn)
		}

		sheet := s.GC.Grid.Sheet(sp.Sheet)
		if sheet == nil {
			continue
		}
		cv := sheet.CellValue(sp.Position)
		if !cv.IsCode() {
			continue
		}

		dt, _ := sheet.DataTableAt(sp.Position)
		var accessed grid.CellsAccessed
		if dt != nil && dt.CodeRun != nil {
			accessed = dt.CodeRun.CellsAccessed
		}
		switch s.GC.CheckDependencies(txn, sp, accessed) {
		case DependencyReferencedCellError:
			s.finalizeErroredRun(txn, sp, grid.ErrorInReferencedCell())
			continue
		case DependencyCircular:
			s.finalizeErroredRun(txn, sp, grid.CircularReferenceError())
			continue
		case DependencyPending:
			txn.deferPending(sp)
			continue
		}

		if err := s.dispatch(ctx, txn, sp, cv.Code.Language, cv.Code.Code); err != nil {
			return s.abort(txn, err.Error())
		}
		if txn.State == StateAwaitingAsync {
			return nil
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, txn *PendingTransaction, sp grid.SheetPos, lang grid.Language, code string) error {
	req := RunRequest{
		TransactionID: txn.ID,
		SheetPos:      sp,
		Language:      lang,
		Code:          code,
		GetCells:      s.getCellsFor(txn),
		OnAsyncComplete: func(run *grid.CodeRun) {
			// The worker runtime (C6) serializes every async
			// completion through its single get_cells multiplexer
			// goroutine, so this is never called concurrently with
			// another mutation of txn.
			_ = s.ResumeAsync(ctx, txn, sp, run)
		},
	}
	out, err := s.Dispatcher.Dispatch(ctx, req)
	if err != nil {
		return err
	}
	if out.Async {
		txn.PendingAsync[sp] = true
		txn.RunningAsync[sp] = true
		txn.WaitingForAsync = &lang
		txn.State = StateAwaitingAsync
		return nil
	}
	return s.commitRun(txn, sp, out.Run)
}

// getCellsFor returns the GetCellsFunc a dispatch should hand the
// runner: the worker runtime's multiplexer if one is wired, else a
// stub error naming the gap explicitly rather than silently returning
// blanks.
func (s *Scheduler) getCellsFor(txn *PendingTransaction) GetCellsFunc {
	if s.GetCells != nil {
		return s.GetCells
	}
	return func(a1 string) (grid.Value, grid.SheetRect, error) {
		return grid.Value{}, grid.SheetRect{}, fmt.Errorf("engine: get_cells requires an A1 resolver, none wired for transaction %s", txn.ID)
	}
}

// commitRun finalizes a synchronous (or just-resumed async) run:
// emits SetCodeRun, clears any pending-async bookkeeping, and resumes
// the loop via the dependents enqueued by Apply.
func (s *Scheduler) commitRun(txn *PendingTransaction, sp grid.SheetPos, run *grid.CodeRun) error {
	delete(txn.PendingAsync, sp)
	delete(txn.RunningAsync, sp)
	if len(txn.PendingAsync) == 0 {
		txn.WaitingForAsync = nil
	}
	return s.GC.Apply(txn, SetCodeRunOp(sp, run))
}

func (s *Scheduler) finalizeErroredRun(txn *PendingTransaction, sp grid.SheetPos, runErr *grid.RunError) {
	run := &grid.CodeRun{Err: runErr}
	_ = s.GC.Apply(txn, SetCodeRunOp(sp, run))
}

// ResumeAsync implements §4.3.5: merges an async runner's completion
// into txn and resumes the scheduling loop from step 2.
func (s *Scheduler) ResumeAsync(ctx context.Context, txn *PendingTransaction, sp grid.SheetPos, run *grid.CodeRun) error {
	if !txn.PendingAsync[sp] {
		return nil // no longer awaited (cancelled or superseded); drop.
	}
	if err := s.commitRun(txn, sp, run); err != nil {
		return s.abort(txn, err.Error())
	}
	return s.Run(ctx, txn)
}

func (s *Scheduler) finalize(txn *PendingTransaction) error {
	txn.State = StateFinalizing
	return nil
}

func (s *Scheduler) abort(txn *PendingTransaction, reason string) error {
	txn.State = StateAborted
	txn.AbortReason = reason
	s.rollback(txn)
	return &AbortedError{TransactionID: txn.ID, Reason: reason}
}

func (s *Scheduler) cancel(txn *PendingTransaction) {
	txn.State = StateAborted
	txn.AbortReason = "cancelled"
	s.rollback(txn)
}

// rollback replays the reverse-operation stack in LIFO order to restore
// the grid to its pre-transaction state.
func (s *Scheduler) rollback(txn *PendingTransaction) {
	for i := len(txn.ReverseOperations) - 1; i >= 0; i-- {
		scratch := NewTransaction(txn.ID+"-rollback", TransactionKindServer, nil)
		_ = s.GC.Apply(scratch, txn.ReverseOperations[i])
	}
}
