// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// DefaultDPR is the default device pixel ratio thumbnails render at.
const DefaultDPR = 2

var backgroundColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// FillEntry is one filled cell rectangle in world (pre-scale) space.
type FillEntry struct {
	Pos   grid.Position
	Color string // hex "#rrggbb"; empty means no fill
}

// CellEntry is one displayed cell value plus the formatting that
// governs its (out-of-scope-here) glyph layout: alignment and
// bold/italic. The pipeline carries this through the RenderRequest per
// spec.md §4.7 step 2 even though this implementation's leaf renderer
// does not rasterize glyphs (see Render's doc comment).
type CellEntry struct {
	Pos    grid.Position
	Text   string
	Format grid.FormatSummary
}

// TableOutline is the bounding rect of one data table's output, drawn
// as a single-pixel border around its anchor rectangle.
type TableOutline struct {
	Rect grid.Rect
}

// RenderRequest is the fully-resolved set of drawing primitives C7
// needs, assembled once per thumbnail from the live sheet per spec.md
// §4.7 step 2.
type RenderRequest struct {
	Selection    grid.Rect
	Fills        []FillEntry
	Cells        []CellEntry
	BordersH     []grid.Block[grid.BorderStyle]
	BordersV     []grid.Block[grid.BorderStyle]
	Tables       []TableOutline
	ChartSprites []image.Image // chart rendering is out of scope (see Renderer doc comment); always empty here
	Background   color.Color
}

// BuildRenderRequest implements spec.md §4.7 steps 1-2: resolve the
// thumbnail selection (the sheet's own ThumbnailSelection wins over the
// caller-provided one) and gather every drawing primitive within it.
func BuildRenderRequest(sheet *grid.Sheet, selection grid.Rect) RenderRequest {
	sel := selection
	if sheet.ThumbnailSelection != nil {
		sel = *sheet.ThumbnailSelection
	}

	req := RenderRequest{Selection: sel, Background: backgroundColor}

	for _, pv := range sheet.SelectionValues(sel) {
		if pv.Value.IsBlank() {
			continue
		}
		req.Cells = append(req.Cells, CellEntry{
			Pos:    pv.Pos,
			Text:   pv.Value.String(),
			Format: sheet.CellFormatSummary(pv.Pos),
		})
	}

	for y := sel.Min.Y; y <= sel.Max.Y; y++ {
		for x := sel.Min.X; x <= sel.Max.X; x++ {
			pos := grid.Position{X: x, Y: y}
			fmtd := sheet.CellFormatSummary(pos)
			if fmtd.FillColor != "" {
				req.Fills = append(req.Fills, FillEntry{Pos: pos, Color: fmtd.FillColor})
			}
		}
	}

	req.BordersH, req.BordersV = sheet.BordersInRect(sel)

	for _, entry := range sheet.IterCodeOutputInRect(sel) {
		req.Tables = append(req.Tables, TableOutline{Rect: entry.Rect})
	}

	return req
}

// Render implements spec.md §4.7: build the RenderRequest, compute the
// viewport transform, and encode a deterministic PNG at the given pixel
// dimensions and device pixel ratio.
//
// Glyph rasterization (the "leaf renderer library" spec.md §4.7 step 4
// defers to out-of-scope tooling) is not implemented: no font/rasterizer
// library appears anywhere in the retrieved pack, and fabricating one
// would violate the no-invented-dependencies rule. Fills, borders, table
// outlines, and background render via the standard library's image
// packages; cell text contributes to layout (CellEntry) but is not
// painted as glyphs.
func Render(sheet *grid.Sheet, selection grid.Rect, pixelW, pixelH, dpr int) ([]byte, error) {
	if dpr <= 0 {
		dpr = DefaultDPR
	}
	req := BuildRenderRequest(sheet, selection)
	vp := newViewport(sheet, req.Selection, pixelW*dpr, pixelH*dpr)

	img := image.NewRGBA(image.Rect(0, 0, pixelW*dpr, pixelH*dpr))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: req.Background}, image.Point{}, draw.Src)

	for _, f := range req.Fills {
		if !req.Selection.Contains(f.Pos) {
			continue
		}
		c, err := parseHexColor(f.Color)
		if err != nil {
			continue
		}
		x0, y0, x1, y1 := vp.cellPixelRect(sheet, f.Pos.X, f.Pos.Y)
		fillRect(img, x0, y0, x1, y1, c)
	}

	for _, t := range req.Tables {
		x0, y0, _, _ := vp.cellPixelRect(sheet, t.Rect.Min.X, t.Rect.Min.Y)
		_, _, x1, y1 := vp.cellPixelRect(sheet, t.Rect.Max.X, t.Rect.Max.Y)
		strokeRect(img, x0, y0, x1, y1, color.RGBA{R: 0x33, G: 0x8c, B: 0xff, A: 0xff})
	}

	drawBorders(img, sheet, vp, req.BordersH, true)
	drawBorders(img, sheet, vp, req.BordersV, false)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	rect := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	fillRect(img, x0, y0, x1, y0+1, c)
	fillRect(img, x0, y1-1, x1, y1, c)
	fillRect(img, x0, y0, x0+1, y1, c)
	fillRect(img, x1-1, y0, x1, y1, c)
}

func drawBorders(img *image.RGBA, sheet *grid.Sheet, vp viewport, blocks []grid.Block[grid.BorderStyle], horizontal bool) {
	for _, b := range blocks {
		if !b.Value.Present {
			continue
		}
		c, err := parseHexColor(b.Value.Color)
		if err != nil {
			c = color.RGBA{A: 0xff}
		}
		x0, y0, _, _ := vp.cellPixelRect(sheet, b.Rect.Min.X, b.Rect.Min.Y)
		_, _, x1b, y1b := vp.cellPixelRect(sheet, b.Rect.Max.X, b.Rect.Max.Y)
		if horizontal {
			fillRect(img, x0, y0, x1b, y0+b.Value.Width, c)
		} else {
			fillRect(img, x0, y0, x0+b.Value.Width, y1b, c)
		}
	}
}

func parseHexColor(s string) (color.Color, error) {
	if s == "" {
		return nil, fmt.Errorf("render: empty color")
	}
	if s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return nil, fmt.Errorf("render: unsupported color format %q", s)
	}
	var r, g, b int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return nil, fmt.Errorf("render: invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 0xff}, nil
}
