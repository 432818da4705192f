package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetSetCellValueReturnsOld(t *testing.T) {
	s := NewSheet("s1", "Sheet1")
	old := s.SetCellValue(Position{X: 1, Y: 1}, NewNumberFromInt(1))
	assert.True(t, old.IsBlank())

	old = s.SetCellValue(Position{X: 1, Y: 1}, NewNumberFromInt(2))
	assert.True(t, old.Equal(NewNumberFromInt(1)))
}

// TestSheetSpillDetection reproduces the spec's concrete scenario 1: a
// vertical array output spills when a plain value is written into its
// output rect, and un-spills when that value is cleared.
func TestSheetSpillDetection(t *testing.T) {
	s := NewSheet("s1", "Sheet1")
	a1, a2, a3 := Position{X: 1, Y: 1}, Position{X: 1, Y: 2}, Position{X: 1, Y: 3}
	b1, b2, b3 := Position{X: 2, Y: 1}, Position{X: 2, Y: 2}, Position{X: 2, Y: 3}

	s.SetCellValue(a1, NewNumberFromInt(1))
	s.SetCellValue(a2, NewNumberFromInt(2))
	s.SetCellValue(a3, NewNumberFromInt(3))

	run := &CodeRun{
		Language: LanguageFormula,
		Code:     "A1:A3",
		Value: Value{Array: [][]CellValue{
			{NewNumberFromInt(1)},
			{NewNumberFromInt(2)},
			{NewNumberFromInt(3)},
		}},
	}
	s.SetDataTable(b1, &DataTable{Kind: DataTableKindCodeRun, CodeRun: run})

	require.False(t, run.SpillError)
	assert.True(t, s.DisplayValue(b1).Equal(NewNumberFromInt(1)))
	assert.True(t, s.DisplayValue(b2).Equal(NewNumberFromInt(2)))
	assert.True(t, s.DisplayValue(b3).Equal(NewNumberFromInt(3)))

	s.SetCellValue(b2, NewText("X"))
	assert.True(t, run.SpillError)
	assert.True(t, s.DisplayValue(b1).IsBlank())
	assert.True(t, s.DisplayValue(b2).Equal(NewText("X")))

	s.SetCellValue(b2, Blank)
	assert.False(t, run.SpillError)
	assert.True(t, s.DisplayValue(b1).Equal(NewNumberFromInt(1)))
	assert.True(t, s.DisplayValue(b2).Equal(NewNumberFromInt(2)))
	assert.True(t, s.DisplayValue(b3).Equal(NewNumberFromInt(3)))
}

func TestSheetTableTieBreakByInsertionOrder(t *testing.T) {
	s := NewSheet("s1", "Sheet1")
	anchor1 := Position{X: 1, Y: 1}
	anchor2 := Position{X: 1, Y: 2} // falls inside anchor1's 2-row output

	run1 := &CodeRun{Value: Value{Array: [][]CellValue{{NewNumberFromInt(1)}, {NewNumberFromInt(2)}}}}
	s.SetDataTable(anchor1, &DataTable{Kind: DataTableKindCodeRun, CodeRun: run1})

	run2 := &CodeRun{Value: Value{Single: NewNumberFromInt(99)}}
	s.SetDataTable(anchor2, &DataTable{Kind: DataTableKindCodeRun, CodeRun: run2})

	// anchor1 was inserted first, so it keeps its output; anchor2 spills.
	assert.False(t, run1.SpillError)
	assert.True(t, run2.SpillError)
}

func TestSheetFormatSummary(t *testing.T) {
	s := NewSheet("s1", "Sheet1")
	s.Bold.SetRect(UnboundedColumn(3), true)
	assert.True(t, s.CellFormatSummary(Position{X: 3, Y: 1_000}).Bold)
	assert.False(t, s.CellFormatSummary(Position{X: 4, Y: 1}).Bold)
}

func TestSheetSelectionValues(t *testing.T) {
	s := NewSheet("s1", "Sheet1")
	s.SetCellValue(Position{X: 1, Y: 1}, NewNumberFromInt(1))
	s.SetCellValue(Position{X: 2, Y: 1}, NewText("b"))

	vals := s.SelectionValues(NewRect(Position{X: 1, Y: 1}, Position{X: 2, Y: 1}))
	require.Len(t, vals, 2)
}
