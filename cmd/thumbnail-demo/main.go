// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Command thumbnail-demo builds a small in-memory sheet and writes its
// rendered thumbnail PNG to disk, exercising internal/render outside
// of a worker's shutdown sequence.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/quadratic-labs/qd-engine/internal/grid"
	"github.com/quadratic-labs/qd-engine/internal/render"
)

func main() {
	out := flag.String("out", "thumbnail.png", "Path to write the rendered PNG to.")
	flag.Parse()

	g := grid.NewGrid()
	sheetID := g.AddSheet("Sheet1")
	sheet := g.Sheet(sheetID)

	sheet.SetCellValue(grid.Position{X: 1, Y: 1}, grid.NewText("Quarter"))
	sheet.SetCellValue(grid.Position{X: 2, Y: 1}, grid.NewText("Revenue"))
	for i, revenue := range []int64{120, 135, 142, 158} {
		row := int64(i) + 2
		sheet.SetCellValue(grid.Position{X: 1, Y: row}, grid.NewText("Q"+string(rune('1'+i))))
		sheet.SetCellValue(grid.Position{X: 2, Y: row}, grid.NewNumberFromInt(revenue))
	}

	renderer := render.NewThumbnailRenderer()
	png, err := renderer.Render(context.Background(), sheet)
	if err != nil {
		log.Fatalf("FATAL: render thumbnail: %v\n", err)
	}

	if err := os.WriteFile(*out, png, 0o644); err != nil {
		log.Fatalf("FATAL: write %s: %v\n", *out, err)
	}
	log.Printf("Wrote %s (%d bytes).\n", *out, len(png))
}
