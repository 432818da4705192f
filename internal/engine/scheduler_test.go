package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// fakeDispatcher resolves A1 to a single CodeRun result synchronously,
// standing in for the Formula runner (C4) without pulling in the
// expr-lang/expr evaluator.
type fakeDispatcher struct {
	async map[grid.SheetPos]bool
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req RunRequest) (DispatchOutcome, error) {
	if f.async != nil && f.async[req.SheetPos] {
		return DispatchOutcome{Async: true}, nil
	}
	return DispatchOutcome{Run: &grid.CodeRun{
		Language: req.Language,
		Code:     req.Code,
		Value:    grid.Value{Single: grid.NewNumberFromInt(42)},
	}}, nil
}

func TestSchedulerRunsSimpleCodeCell(t *testing.T) {
	gc, sheetID := newTestController()
	sheet := gc.Grid.Sheet(sheetID)
	b1 := grid.Position{X: 2, Y: 1}

	sheet.SetCellValue(b1, grid.NewCode(grid.LanguageFormula, "A1"))

	txn := NewTransaction("t1", TransactionKindUser, []Operation{})
	txn.CellsToCompute = append(txn.CellsToCompute, grid.SheetPos{Position: b1, Sheet: sheetID})

	sched := NewScheduler(gc, &fakeDispatcher{})
	require.NoError(t, sched.Run(context.Background(), txn))

	assert.Equal(t, StateFinalizing, txn.State)
	dt, ok := sheet.DataTableAt(b1)
	require.True(t, ok)
	assert.True(t, dt.CodeRun.Value.Single.Equal(grid.NewNumberFromInt(42)))
}

func TestSchedulerSuspendsAndResumesOnAsync(t *testing.T) {
	gc, sheetID := newTestController()
	sheet := gc.Grid.Sheet(sheetID)
	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}

	sheet.SetCellValue(b1.Position, grid.NewCode(grid.LanguagePython, "get_cells('A1')"))

	txn := NewTransaction("t1", TransactionKindUser, nil)
	txn.CellsToCompute = append(txn.CellsToCompute, b1)

	dispatcher := &fakeDispatcher{async: map[grid.SheetPos]bool{b1: true}}
	sched := NewScheduler(gc, dispatcher)
	require.NoError(t, sched.Run(context.Background(), txn))

	assert.Equal(t, StateAwaitingAsync, txn.State)
	assert.True(t, txn.PendingAsync[b1])

	run := &grid.CodeRun{Language: grid.LanguagePython, Value: grid.Value{Single: grid.NewNumberFromInt(7)}}
	require.NoError(t, sched.ResumeAsync(context.Background(), txn, b1, run))

	assert.Equal(t, StateFinalizing, txn.State)
	assert.False(t, txn.PendingAsync[b1])
	dt, ok := sheet.DataTableAt(b1.Position)
	require.True(t, ok)
	assert.True(t, dt.CodeRun.Value.Single.Equal(grid.NewNumberFromInt(7)))
}

func TestSchedulerRollsBackOnAbort(t *testing.T) {
	gc, sheetID := newTestController()
	a1 := grid.SheetPos{Position: grid.Position{X: 1, Y: 1}, Sheet: sheetID}
	gc.Grid.Sheet(sheetID).SetCellValue(a1.Position, grid.NewNumberFromInt(1))

	txn := NewTransaction("t1", TransactionKindUser, []Operation{
		SetCellValueOp(a1, grid.NewNumberFromInt(2)),
		{Kind: OpSetCellValue, SheetPos: grid.SheetPos{Position: grid.Position{X: 1, Y: 1}, Sheet: "missing-sheet"}},
	})

	sched := NewScheduler(gc, &fakeDispatcher{})
	err := sched.Run(context.Background(), txn)
	require.Error(t, err)
	assert.Equal(t, StateAborted, txn.State)
	assert.True(t, gc.Grid.Sheet(sheetID).CellValue(a1.Position).Equal(grid.NewNumberFromInt(1)))
}
