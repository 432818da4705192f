// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runners

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// fakeGetCells stands in for the engine side of the get_cells channel:
// it answers a single A1 reference with a fixed value.
func fakeGetCells(value grid.CellValue) func(string) (grid.Value, grid.SheetRect, error) {
	return func(a1 string) (grid.Value, grid.SheetRect, error) {
		return grid.Value{Single: value}, grid.SheetRect{Rect: grid.SingleCell(grid.Position{X: 1, Y: 1})}, nil
	}
}

// TestResolveCellReferencesQCellsSyntax covers §8 scenario 3's literal
// code body, "q.cells('A1') + 10": A1 holds Number(1), so the resolved
// source handed to the interpreter must read "1 + 10", not a quoted
// string that would raise a TypeError.
func TestResolveCellReferencesQCellsSyntax(t *testing.T) {
	resolved, accessed, err := resolveCellReferences(`q.cells('A1') + 10`, fakeGetCells(grid.NewNumberFromInt(1)))
	require.NoError(t, err)
	assert.Equal(t, `1 + 10`, resolved)
	assert.NotEmpty(t, accessed)
}

// TestResolveCellReferencesGetCellsSyntax keeps the older get_cells(...)
// spelling working alongside q.cells(...).
func TestResolveCellReferencesGetCellsSyntax(t *testing.T) {
	resolved, _, err := resolveCellReferences(`get_cells("A1")`, fakeGetCells(grid.NewText("hi")))
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, resolved)
}

func TestPythonLiteral(t *testing.T) {
	assert.Equal(t, "11", pythonLiteral(grid.NewNumberFromInt(11)))
	assert.Equal(t, "True", pythonLiteral(grid.NewLogical(true)))
	assert.Equal(t, "False", pythonLiteral(grid.NewLogical(false)))
	assert.Equal(t, "None", pythonLiteral(grid.Blank))
	assert.Equal(t, `"hi"`, pythonLiteral(grid.NewText("hi")))
}
