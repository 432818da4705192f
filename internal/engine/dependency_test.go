package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

func TestCheckDependenciesDetectsCircularReference(t *testing.T) {
	gc, sheetID := newTestController()
	sheet := gc.Grid.Sheet(sheetID)

	a1 := grid.Position{X: 1, Y: 1}
	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}

	// A1 is itself a code cell whose output depends on B1 — a cycle if
	// B1 in turn depends on A1.
	sheet.SetDataTable(a1, &grid.DataTable{
		Kind: grid.DataTableKindCodeRun,
		CodeRun: &grid.CodeRun{
			Value:         grid.Value{Single: grid.NewNumberFromInt(1)},
			CellsAccessed: grid.CellsAccessed{sheetID: {grid.SingleCell(b1.Position)}},
		},
	})

	accessed := grid.CellsAccessed{sheetID: {grid.SingleCell(a1)}}
	outcome := gc.CheckDependencies(NewTransaction("t1", TransactionKindUser, nil), b1, accessed)
	assert.Equal(t, DependencyCircular, outcome)
}

func TestCheckDependenciesDetectsReferencedCellError(t *testing.T) {
	gc, sheetID := newTestController()
	sheet := gc.Grid.Sheet(sheetID)

	a1 := grid.Position{X: 1, Y: 1}
	sheet.SetDataTable(a1, &grid.DataTable{
		Kind:    grid.DataTableKindCodeRun,
		CodeRun: &grid.CodeRun{Err: grid.CircularReferenceError()},
	})

	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}
	accessed := grid.CellsAccessed{sheetID: {grid.SingleCell(a1)}}
	outcome := gc.CheckDependencies(NewTransaction("t1", TransactionKindUser, nil), b1, accessed)
	assert.Equal(t, DependencyReferencedCellError, outcome)
}

func TestCheckDependenciesDetectsPendingAsync(t *testing.T) {
	gc, sheetID := newTestController()
	sheet := gc.Grid.Sheet(sheetID)

	a1 := grid.Position{X: 1, Y: 1}
	sheet.SetDataTable(a1, &grid.DataTable{
		Kind:    grid.DataTableKindCodeRun,
		CodeRun: &grid.CodeRun{Value: grid.Value{Single: grid.NewNumberFromInt(1)}},
	})

	txn := NewTransaction("t1", TransactionKindUser, nil)
	txn.PendingAsync[grid.SheetPos{Position: a1, Sheet: sheetID}] = true

	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}
	accessed := grid.CellsAccessed{sheetID: {grid.SingleCell(a1)}}
	outcome := gc.CheckDependencies(txn, b1, accessed)
	assert.Equal(t, DependencyPending, outcome)
}

func TestCheckDependenciesCleanChainIsOK(t *testing.T) {
	gc, sheetID := newTestController()
	sheet := gc.Grid.Sheet(sheetID)

	a1 := grid.Position{X: 1, Y: 1}
	sheet.SetDataTable(a1, &grid.DataTable{
		Kind:    grid.DataTableKindCodeRun,
		CodeRun: &grid.CodeRun{Value: grid.Value{Single: grid.NewNumberFromInt(1)}},
	})

	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}
	accessed := grid.CellsAccessed{sheetID: {grid.SingleCell(a1)}}
	outcome := gc.CheckDependencies(NewTransaction("t1", TransactionKindUser, nil), b1, accessed)
	assert.Equal(t, DependencyOK, outcome)
}

func TestBuildComputeOrderTopologicallySortsBatch(t *testing.T) {
	sheetID := grid.SheetID("s1")
	a1 := grid.SheetPos{Position: grid.Position{X: 1, Y: 1}, Sheet: sheetID}
	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}
	c1 := grid.SheetPos{Position: grid.Position{X: 3, Y: 1}, Sheet: sheetID}

	// c1 depends on b1 which depends on a1.
	deps := map[grid.SheetPos][]grid.SheetPos{
		b1: {a1},
		c1: {b1},
	}

	order, err := BuildComputeOrder([]grid.SheetPos{c1, b1, a1}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := func(sp grid.SheetPos) int {
		for i, s := range order {
			if s == sp {
				return i
			}
		}
		return -1
	}
	assert.Less(t, pos(a1), pos(b1))
	assert.Less(t, pos(b1), pos(c1))
}

func TestBuildComputeOrderDetectsCycle(t *testing.T) {
	sheetID := grid.SheetID("s1")
	a1 := grid.SheetPos{Position: grid.Position{X: 1, Y: 1}, Sheet: sheetID}
	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}

	deps := map[grid.SheetPos][]grid.SheetPos{
		a1: {b1},
		b1: {a1},
	}
	_, err := BuildComputeOrder([]grid.SheetPos{a1, b1}, deps)
	assert.Error(t, err)
}
