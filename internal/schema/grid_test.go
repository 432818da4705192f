// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// TestExportImportRoundTrip covers §8's export(import(x)) ≡ x law for
// the document schema: a grid with a plain value, a code cell body,
// a cached code run, and a validation survives Export -> JSON ->
// Import with every field intact.
func TestExportImportRoundTrip(t *testing.T) {
	g := grid.NewGrid()
	sheetID := g.Sheets()[0].ID
	sheet := g.Sheet(sheetID)

	a1 := grid.Position{X: 1, Y: 1}
	a2 := grid.Position{X: 1, Y: 2}
	sheet.SetCellValue(a1, grid.NewNumberFromInt(1))
	sheet.SetCellValue(a2, grid.NewCode(grid.LanguagePython, "q.cells('A1') + 10"))
	sheet.SetDataTable(a2, &grid.DataTable{
		Kind: grid.DataTableKindCodeRun,
		CodeRun: &grid.CodeRun{
			Language: grid.LanguagePython,
			Code:     "q.cells('A1') + 10",
			Value:    grid.Value{Single: grid.NewNumberFromInt(11)},
		},
	})
	sheet.Validations = append(sheet.Validations, grid.Validation{
		ID:        "v1",
		Selection: grid.NewRect(a1, a1),
		Rule:      "Value > 0",
	})

	doc, err := Export(g)
	require.NoError(t, err)
	assert.Equal(t, Current, doc.Version)

	wire, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(wire, &decoded))

	got, err := Import(decoded)
	require.NoError(t, err)

	gotSheet, ok := got.SheetByName("Sheet1")
	require.True(t, ok)

	assert.True(t, gotSheet.CellValue(a1).Equal(grid.NewNumberFromInt(1)))
	assert.Equal(t, grid.LanguagePython, gotSheet.CellValue(a2).Code.Language)
	assert.Equal(t, "q.cells('A1') + 10", gotSheet.CellValue(a2).Code.Code)

	dt, ok := gotSheet.DataTableAt(a2)
	require.True(t, ok)
	require.NotNil(t, dt.CodeRun)
	assert.True(t, dt.CodeRun.Value.Single.Equal(grid.NewNumberFromInt(11)))

	require.Len(t, gotSheet.Validations, 1)
	assert.Equal(t, "v1", gotSheet.Validations[0].ID)
	assert.Equal(t, "Value > 0", gotSheet.Validations[0].Rule)
}

func TestImportEmptyBodyStartsBlank(t *testing.T) {
	g, err := Import(Document{Version: V1_7, Body: map[string]any{}})
	require.NoError(t, err)
	assert.Empty(t, g.Sheets())
}
