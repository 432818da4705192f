// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package render

import (
	"context"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// ThumbnailRenderer adapts Render into the worker runtime's narrow
// Renderer seam (internal/runtime.Renderer), binding the fixed
// dimensions and device pixel ratio every worker-shutdown thumbnail
// uses.
type ThumbnailRenderer struct {
	Width, Height int
	DPR           int
}

// NewThumbnailRenderer returns a ThumbnailRenderer at the default
// 1280x720 size and 2x DPR, matching the determinism fixture spec.md's
// test harness pins against.
func NewThumbnailRenderer() *ThumbnailRenderer {
	return &ThumbnailRenderer{Width: 1280, Height: 720, DPR: DefaultDPR}
}

// Render implements internal/runtime.Renderer. The selection passed to
// the underlying Render call is the fixed range of columns 1-26 and
// rows 1-50 when no ThumbnailSelection has been set; cells outside it
// are not drawn. BuildRenderRequest resolves the authoritative one
// regardless.
func (t *ThumbnailRenderer) Render(_ context.Context, sheet *grid.Sheet) ([]byte, error) {
	sel := grid.Rect{Min: grid.Position{X: 1, Y: 1}, Max: grid.Position{X: 26, Y: 50}}
	if sheet.ThumbnailSelection != nil {
		sel = *sheet.ThumbnailSelection
	}
	return Render(sheet, sel, t.Width, t.Height, t.DPR)
}
