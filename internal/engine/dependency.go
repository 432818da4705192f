// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package engine

import (
	"fmt"

	"github.com/gammazero/toposort"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// DependencyOutcome is the result of walking a code cell's transitive
// dependency closure before scheduling it (§4.3.3).
type DependencyOutcome uint8

const (
	DependencyOK DependencyOutcome = iota
	DependencyReferencedCellError
	DependencyCircular
	DependencyPending
)

// CheckDependencies walks, from sp's accessed regions, the transitive
// closure of overlapping code outputs, bounded by a seen-anchors set.
// It looks for three disqualifying conditions: a referenced cell in
// error/spill, sp appearing in its own closure (circular reference), or
// a dependency still waiting on an async runner. A circular reference
// is returned as soon as it is found; otherwise the walk runs to the end
// and reports the last error or pending condition it saw. An empty
// closure, or one containing only clean completed cells, reports
// DependencyOK.
func (gc *GridController) CheckDependencies(txn *PendingTransaction, sp grid.SheetPos, accessed grid.CellsAccessed) DependencyOutcome {
	seen := make(map[grid.SheetPos]bool)
	queue := accessed.ToSheetRects()
	outcome := DependencyOK

	for len(queue) > 0 {
		sr := queue[0]
		queue = queue[1:]

		if sr.Sheet == sp.Sheet && sr.Rect.Contains(sp.Position) {
			return DependencyCircular
		}

		sheet := gc.Grid.Sheet(sr.Sheet)
		if sheet == nil {
			continue
		}
		for _, entry := range sheet.IterCodeOutputInRect(sr.Rect) {
			anchor := grid.SheetPos{Position: entry.Anchor, Sheet: sr.Sheet}
			if anchor == sp {
				return DependencyCircular
			}
			if seen[anchor] {
				continue
			}
			seen[anchor] = true

			if entry.Table.SpillError() {
				outcome = DependencyReferencedCellError
				continue
			}
			if entry.Table.CodeRun == nil {
				continue
			}
			if entry.Table.CodeRun.Err != nil {
				outcome = DependencyReferencedCellError
				continue
			}
			if txn.PendingAsync[anchor] {
				outcome = DependencyPending
				continue
			}
			queue = append(queue, entry.Table.CodeRun.CellsAccessed.ToSheetRects()...)
		}
	}
	return outcome
}

// SettleDependentPending releases the cells parked in dependentPending.
// While any async run is still outstanding every parked cell stays
// parked and nil is returned. Once none is outstanding, all parked
// cells are returned together for the scheduler to re-check through
// CheckDependencies; no cell is marked circular here.
func (t *PendingTransaction) SettleDependentPending() []grid.SheetPos {
	if len(t.dependentPending) == 0 {
		return nil
	}
	if len(t.PendingAsync) > 0 {
		return nil // still something external to wait on; leave parked.
	}
	// No async left outstanding: hand every parked cell back so the
	// scheduler's normal CheckDependencies path decides each one afresh.
	resumed := make([]grid.SheetPos, 0, len(t.dependentPending))
	for sp := range t.dependentPending {
		resumed = append(resumed, sp)
	}
	t.dependentPending = make(map[grid.SheetPos]bool)
	return resumed
}

func (t *PendingTransaction) deferPending(sp grid.SheetPos) {
	t.dependentPending[sp] = true
}

// BuildComputeOrder topologically sorts a batch of ready cells against
// the dependency edges discovered for them (dependency -> dependent),
// so independent cells keep a deterministic relative order and any
// cross-dependency within the batch is resolved before a dependent is
// scheduled ahead of what it reads. Adapted from the toposort-based
// DAG task ordering the teacher used for build-step scheduling, keyed
// here by SheetPos instead of task name.
func BuildComputeOrder(cells []grid.SheetPos, deps map[grid.SheetPos][]grid.SheetPos) ([]grid.SheetPos, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	var edges []toposort.Edge
	for _, c := range cells {
		for _, dep := range deps[c] {
			edges = append(edges, toposort.Edge{dep, c})
		}
	}
	if len(edges) == 0 {
		return cells, nil
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("engine: circular reference among batch cells: %w", err)
	}

	inSorted := make(map[grid.SheetPos]bool, len(sorted))
	out := make([]grid.SheetPos, 0, len(cells))
	for _, node := range sorted {
		sp := node.(grid.SheetPos)
		inSorted[sp] = true
		out = append(out, sp)
	}
	for _, c := range cells {
		if !inSorted[c] {
			out = append([]grid.SheetPos{c}, out...)
		}
	}
	return out, nil
}
