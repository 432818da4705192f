// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runtime

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// getCellsRequest is one runner's request to read a cell, submitted
// onto the multiplexer's bounded channel.
type getCellsRequest struct {
	a1    string
	reply chan getCellsReply
}

type getCellsReply struct {
	value grid.Value
	rect  grid.SheetRect
	err   error
}

// requestChannelDepth is spec.md §4.6 step 3's "bounded buffer (32
// deep); senders block when full, giving natural backpressure".
const requestChannelDepth = 32

// GetCellsMultiplexer is the single long-lived task that serializes
// every runner's get_cells call back into the engine's single-threaded
// cell graph (§5's "no lock is needed around the cell graph within one
// worker" invariant depends on exactly one goroutine ever touching it).
type GetCellsMultiplexer struct {
	sheet    *grid.Sheet
	requests chan getCellsRequest
}

// NewGetCellsMultiplexer binds the multiplexer to one sheet — a worker
// owns exactly one sheet for its lifetime.
func NewGetCellsMultiplexer(sheet *grid.Sheet) *GetCellsMultiplexer {
	return &GetCellsMultiplexer{sheet: sheet, requests: make(chan getCellsRequest, requestChannelDepth)}
}

// Run processes requests until ctx is cancelled; cancellation here is
// non-error, per spec.md §4.6 step 5 ("abort the get_cells multiplexer;
// its cancellation must be non-error").
func (m *GetCellsMultiplexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-m.requests:
			v, sr, err := m.resolve(req.a1)
			req.reply <- getCellsReply{value: v, rect: sr, err: err}
		}
	}
}

// GetCells returns the engine.GetCellsFunc a runner calls; submitting
// onto m.requests blocks (applying backpressure) once the channel's 32
// slots are full.
func (m *GetCellsMultiplexer) GetCells() engine.GetCellsFunc {
	return func(a1 string) (grid.Value, grid.SheetRect, error) {
		reply := make(chan getCellsReply, 1)
		m.requests <- getCellsRequest{a1: a1, reply: reply}
		r := <-reply
		return r.value, r.rect, r.err
	}
}

func (m *GetCellsMultiplexer) resolve(a1 string) (grid.Value, grid.SheetRect, error) {
	pos, err := parseA1(a1)
	if err != nil {
		return grid.Value{}, grid.SheetRect{}, err
	}
	cv := m.sheet.DisplayValue(pos)
	rect := grid.Rect{Min: pos, Max: pos}
	return grid.Value{Single: cv}, grid.SheetRect{Rect: rect, Sheet: m.sheet.ID}, nil
}

var a1CellRe = regexp.MustCompile(`^([A-Za-z]+)([0-9]+)$`)

// parseA1 resolves a single-cell A1 reference ("A1", "BC12") to a
// Position. Range references ("A1:B4") are out of scope here: a real
// A1-range grammar is a non-trivial parser no pack repo demonstrates,
// so multi-cell get_cells calls are left for the formula/runner layer
// to expand into repeated single-cell calls.
func parseA1(a1 string) (grid.Position, error) {
	m := a1CellRe.FindStringSubmatch(strings.TrimSpace(a1))
	if m == nil {
		return grid.Position{}, fmt.Errorf("runtime: unsupported get_cells reference %q", a1)
	}
	col := int64(0)
	for _, r := range strings.ToUpper(m[1]) {
		col = col*26 + int64(r-'A'+1)
	}
	row, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return grid.Position{}, fmt.Errorf("runtime: invalid row in %q: %w", a1, err)
	}
	return grid.Position{X: col, Y: row}, nil
}
