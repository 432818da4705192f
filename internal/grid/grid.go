// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package grid

import (
	"sync"

	"github.com/google/uuid"
)

// Grid owns every sheet in one workbook snapshot: the unit of state one
// worker loads, mutates for the life of its process, and persists back
// through internal/schema.
type Grid struct {
	mu         sync.RWMutex
	sheets     map[SheetID]*Sheet
	sheetOrder []SheetID
}

// NewGrid returns an empty grid with one default sheet, matching the
// behavior of a freshly created workbook.
func NewGrid() *Grid {
	g := &Grid{sheets: make(map[SheetID]*Sheet)}
	g.AddSheet("Sheet1")
	return g
}

// AddSheet creates and inserts a new sheet, returning its id.
func (g *Grid) AddSheet(name string) SheetID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := SheetID(uuid.NewString())
	g.sheets[id] = NewSheet(id, name)
	g.sheetOrder = append(g.sheetOrder, id)
	return id
}

// Sheet returns the sheet with the given id, or nil if it does not
// exist.
func (g *Grid) Sheet(id SheetID) *Sheet {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sheets[id]
}

// SheetByName looks up a sheet by its display name.
func (g *Grid) SheetByName(name string) (*Sheet, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range g.sheetOrder {
		if g.sheets[id].Name == name {
			return g.sheets[id], true
		}
	}
	return nil, false
}

// Sheets returns every sheet in creation order.
func (g *Grid) Sheets() []*Sheet {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Sheet, 0, len(g.sheetOrder))
	for _, id := range g.sheetOrder {
		out = append(out, g.sheets[id])
	}
	return out
}

// DeleteSheet removes a sheet and every RegionMap entry that touches it,
// on every remaining sheet — required by the invariant that deleting a
// sheet removes every edge mentioning it, not just the deleted sheet's
// own index.
func (g *Grid) DeleteSheet(id SheetID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.sheets, id)
	for i, sid := range g.sheetOrder {
		if sid == id {
			g.sheetOrder = append(g.sheetOrder[:i], g.sheetOrder[i+1:]...)
			break
		}
	}
	for _, s := range g.sheets {
		s.Region.RemoveSheet(id)
	}
}

// SortedSheetIDs returns sheet ids in creation order, a deterministic
// basis for any cross-sheet iteration the engine needs.
func (g *Grid) SortedSheetIDs() []SheetID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]SheetID, len(g.sheetOrder))
	copy(ids, g.sheetOrder)
	return ids
}
