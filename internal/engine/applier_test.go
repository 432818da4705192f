package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

func newTestController() (*GridController, grid.SheetID) {
	g := grid.NewGrid()
	sheetID := g.Sheets()[0].ID
	return NewGridController(g), sheetID
}

func TestApplySetCellValueProducesReverse(t *testing.T) {
	gc, sheetID := newTestController()
	sp := grid.SheetPos{Position: grid.Position{X: 1, Y: 1}, Sheet: sheetID}

	txn := NewTransaction("t1", TransactionKindUser, nil)
	require.NoError(t, gc.Apply(txn, SetCellValueOp(sp, grid.NewNumberFromInt(5))))

	require.Len(t, txn.ReverseOperations, 1)
	rev := txn.ReverseOperations[0]
	assert.Equal(t, OpSetCellValue, rev.Kind)
	assert.True(t, rev.Value.IsBlank())
	assert.True(t, gc.Grid.Sheet(sheetID).CellValue(sp.Position).Equal(grid.NewNumberFromInt(5)))
}

func TestApplySetCellValueEnqueuesDependent(t *testing.T) {
	gc, sheetID := newTestController()
	sheet := gc.Grid.Sheet(sheetID)

	a1 := grid.SheetPos{Position: grid.Position{X: 1, Y: 1}, Sheet: sheetID}
	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}

	sheet.Region.SetRegionsForLoc(grid.NewSheetLocation(b1), []grid.SheetRect{
		{Rect: grid.SingleCell(a1.Position), Sheet: sheetID},
	})

	txn := NewTransaction("t1", TransactionKindUser, nil)
	require.NoError(t, gc.Apply(txn, SetCellValueOp(a1, grid.NewNumberFromInt(1))))

	require.Len(t, txn.CellsToCompute, 1)
	assert.Equal(t, b1, txn.CellsToCompute[0])
}

func TestApplySetCodeRunUpdatesRegionMap(t *testing.T) {
	gc, sheetID := newTestController()
	b1 := grid.SheetPos{Position: grid.Position{X: 2, Y: 1}, Sheet: sheetID}

	run := &grid.CodeRun{
		Language: grid.LanguageFormula,
		Code:     "A1",
		CellsAccessed: grid.CellsAccessed{
			sheetID: {grid.NewRect(grid.Position{X: 1, Y: 1}, grid.Position{X: 1, Y: 1})},
		},
		Value: grid.Value{Single: grid.NewNumberFromInt(1)},
	}

	txn := NewTransaction("t1", TransactionKindUser, nil)
	require.NoError(t, gc.Apply(txn, SetCodeRunOp(b1, run)))

	locs := gc.Grid.Sheet(sheetID).Region.LocationsAssociatedWithRegion(grid.SheetRect{
		Rect:  grid.SingleCell(grid.Position{X: 1, Y: 1}),
		Sheet: sheetID,
	})
	require.Len(t, locs, 1)
	assert.Equal(t, b1, locs[0].Pos)
}
