// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

func fixtureSheet() *grid.Sheet {
	s := grid.NewSheet("s1", "Sheet1")
	s.SetCellValue(grid.Position{X: 1, Y: 1}, grid.NewText("Revenue"))
	s.SetCellValue(grid.Position{X: 2, Y: 1}, grid.NewNumberFromInt(100))
	s.Bold.SetRect(grid.UnboundedColumn(1), true)
	s.FillColor.SetRect(grid.UnboundedColumn(2), "#ffcc00")
	return s
}

// TestRenderDeterministic reproduces spec.md §8 scenario 6: rendering the
// same sheet twice at the same dimensions/DPR must produce byte-identical
// PNGs, since a fixed png.Encoder compression level is the only thing
// standing in for true pixel determinism here (see render.go's doc
// comment on why glyph rasterization itself is out of scope).
func TestRenderDeterministic(t *testing.T) {
	s := fixtureSheet()
	sel := grid.Rect{Min: grid.Position{X: 1, Y: 1}, Max: grid.Position{X: 5, Y: 10}}

	first, err := Render(s, sel, 1280, 720, DefaultDPR)
	require.NoError(t, err)

	second, err := Render(s, sel, 1280, 720, DefaultDPR)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestThumbnailRendererDeterministic(t *testing.T) {
	s := fixtureSheet()
	r := NewThumbnailRenderer()

	first, err := r.Render(context.Background(), s)
	require.NoError(t, err)

	second, err := r.Render(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildRenderRequestSkipsBlankCells(t *testing.T) {
	s := fixtureSheet()
	req := BuildRenderRequest(s, grid.Rect{Min: grid.Position{X: 1, Y: 1}, Max: grid.Position{X: 5, Y: 10}})

	require.Len(t, req.Cells, 2)
	assert.NotEmpty(t, req.Fills)
}
