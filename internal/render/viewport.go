// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package render implements the Thumbnail Pipeline (C7): given a
// grid controller, a sheet, and a selection, produce a deterministic
// PNG bound to a fixed viewport.
package render

import "github.com/quadratic-labs/qd-engine/internal/grid"

// worldBounds is the selection's extent in world (pixel, pre-scale)
// coordinates, derived by summing column widths / row heights from the
// sheet's own offsets up to the selection's edges.
type worldBounds struct {
	width  float64
	height float64
}

func computeWorldBounds(sheet *grid.Sheet, sel grid.Rect) worldBounds {
	var w, h float64
	for x := sel.Min.X; x <= sel.Max.X; x++ {
		w += sheet.ColumnWidth(x)
	}
	for y := sel.Min.Y; y <= sel.Max.Y; y++ {
		h += sheet.RowHeight(y)
	}
	return worldBounds{width: w, height: h}
}

// viewport is the transform from a selection's world bounds into pixel
// space, per spec.md §4.7 step 3: a uniform scale computed from a
// 1-pixel border on each axis, the smaller of the two axis scales
// winning so the whole selection fits without distortion or clipping.
type viewport struct {
	scale     float64
	pixelW    int
	pixelH    int
	offsetCol map[int64]float64 // column x -> left edge in world units, relative to sel.Min.X
	offsetRow map[int64]float64 // row y -> top edge in world units, relative to sel.Min.Y
}

func newViewport(sheet *grid.Sheet, sel grid.Rect, pixelW, pixelH int) viewport {
	bounds := computeWorldBounds(sheet, sel)

	scaleX := (float64(pixelW) - 2) / maxf(bounds.width, 1)
	scaleY := (float64(pixelH) - 2) / maxf(bounds.height, 1)
	scale := scaleX
	if scaleY < scale {
		scale = scaleY
	}

	offsetCol := make(map[int64]float64)
	var acc float64
	for x := sel.Min.X; x <= sel.Max.X; x++ {
		offsetCol[x] = acc
		acc += sheet.ColumnWidth(x)
	}
	offsetRow := make(map[int64]float64)
	acc = 0
	for y := sel.Min.Y; y <= sel.Max.Y; y++ {
		offsetRow[y] = acc
		acc += sheet.RowHeight(y)
	}

	return viewport{scale: scale, pixelW: pixelW, pixelH: pixelH, offsetCol: offsetCol, offsetRow: offsetRow}
}

// cellPixelRect returns the pixel-space rectangle a cell at (x, y)
// occupies, offset by the 1-pixel border. The result is not clamped;
// fillRect clips each drawn rectangle to the image bounds.
func (vp viewport) cellPixelRect(sheet *grid.Sheet, x, y int64) (x0, y0, x1, y1 int) {
	left := vp.offsetCol[x] * vp.scale
	top := vp.offsetRow[y] * vp.scale
	right := left + sheet.ColumnWidth(x)*vp.scale
	bottom := top + sheet.RowHeight(y)*vp.scale
	return int(left) + 1, int(top) + 1, int(right) + 1, int(bottom) + 1
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
