// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package grid

import "sync"

// LocationKind discriminates the two shapes a CodeCellLocation can take.
type LocationKind uint8

const (
	// LocationSheet is an ordinary code cell anchored directly at a
	// SheetPos.
	LocationSheet LocationKind = iota
	// LocationEmbedded is a code cell living inside another table's
	// value array (e.g. produced by array-formula expansion), addressed
	// by the owning table's anchor plus an (x, y) offset into it.
	LocationEmbedded
)

// CodeCellLocation is either a sheet position or an embedded index
// inside a data table, matching the RegionMap's key type in the data
// model.
type CodeCellLocation struct {
	Kind LocationKind
	Pos  SheetPos // valid when Kind == LocationSheet
	// Table is the owning table's anchor; X, Y are the offset into its
	// value array, valid when Kind == LocationEmbedded.
	Table SheetPos
	X, Y  int64
}

// NewSheetLocation builds a LocationSheet CodeCellLocation.
func NewSheetLocation(pos SheetPos) CodeCellLocation {
	return CodeCellLocation{Kind: LocationSheet, Pos: pos}
}

// NewEmbeddedLocation builds a LocationEmbedded CodeCellLocation.
func NewEmbeddedLocation(table SheetPos, x, y int64) CodeCellLocation {
	return CodeCellLocation{Kind: LocationEmbedded, Table: table, X: x, Y: y}
}

type regionEntry struct {
	rect Rect
	loc  CodeCellLocation
}

type regionAssoc struct {
	sheet SheetID
	rect  Rect
}

// RegionMap is the bidirectional index between code-cell locations and
// the regions they read: a forward index (location -> regions) and an
// inverse index (sheet -> regions intersecting a query rect). There is
// no R-tree library anywhere in the retrieved example pack, so the
// inverse index here is a flat per-sheet slice, linearly scanned for
// intersection; see DESIGN.md for why this is the one deliberately
// stdlib-only data structure in the cell graph. Entries are always
// inserted and removed together so the two indexes never drift.
type RegionMap struct {
	mu          sync.RWMutex
	regionToLoc map[SheetID][]regionEntry
	locToRegion map[CodeCellLocation][]regionAssoc
}

// NewRegionMap returns an empty RegionMap.
func NewRegionMap() *RegionMap {
	return &RegionMap{
		regionToLoc: make(map[SheetID][]regionEntry),
		locToRegion: make(map[CodeCellLocation][]regionAssoc),
	}
}

// SetRegionsForLoc replaces every region associated with loc, removing
// stale entries first.
func (m *RegionMap) SetRegionsForLoc(loc CodeCellLocation, regions []SheetRect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocLocked(loc)
	for _, r := range regions {
		m.regionToLoc[r.Sheet] = append(m.regionToLoc[r.Sheet], regionEntry{rect: r.Rect, loc: loc})
		m.locToRegion[loc] = append(m.locToRegion[loc], regionAssoc{sheet: r.Sheet, rect: r.Rect})
	}
}

// RemoveLoc removes every region associated with loc.
func (m *RegionMap) RemoveLoc(loc CodeCellLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocLocked(loc)
}

func (m *RegionMap) removeLocLocked(loc CodeCellLocation) {
	assocs, ok := m.locToRegion[loc]
	if !ok {
		return
	}
	for _, a := range assocs {
		entries := m.regionToLoc[a.sheet]
		out := entries[:0]
		for _, e := range entries {
			if !(e.loc == loc && e.rect == a.rect) {
				out = append(out, e)
			}
		}
		if len(out) == 0 {
			delete(m.regionToLoc, a.sheet)
		} else {
			m.regionToLoc[a.sheet] = out
		}
	}
	delete(m.locToRegion, loc)
}

// RemoveSheet removes every edge touching sheetID, whether sheetID is
// the location's own sheet (for LocationSheet entries) or a sheet
// referenced by one of its regions.
func (m *RegionMap) RemoveSheet(sheetID SheetID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for loc := range m.locToRegion {
		if loc.Kind == LocationSheet && loc.Pos.Sheet == sheetID {
			m.removeLocLocked(loc)
		}
	}
	delete(m.regionToLoc, sheetID)
	for loc, assocs := range m.locToRegion {
		out := assocs[:0]
		for _, a := range assocs {
			if a.sheet != sheetID {
				out = append(out, a)
			}
		}
		if len(out) == 0 {
			delete(m.locToRegion, loc)
		} else {
			m.locToRegion[loc] = out
		}
	}
}

// LocationsAssociatedWithRegion returns every CodeCellLocation (sheet or
// embedded) whose region overlaps sr, in per-sheet scan order — the
// stand-in for the source's R-tree traversal order referenced in the
// ordering guarantees (§5: "dependents ... enqueued ... lexicographic by
// sheet, then by R-tree traversal").
func (m *RegionMap) LocationsAssociatedWithRegion(sr SheetRect) []CodeCellLocation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []CodeCellLocation
	seen := make(map[CodeCellLocation]bool)
	for _, e := range m.regionToLoc[sr.Sheet] {
		if e.rect.Intersects(sr.Rect) && !seen[e.loc] {
			seen[e.loc] = true
			out = append(out, e.loc)
		}
	}
	return out
}

// PositionsAssociatedWithRegion is LocationsAssociatedWithRegion filtered
// to Sheet-kind locations only, returned as SheetPos — the form the
// dependents-enqueue path in the scheduler consumes (embedded locations
// recompute transitively through their owning table).
func (m *RegionMap) PositionsAssociatedWithRegion(sr SheetRect) []SheetPos {
	locs := m.LocationsAssociatedWithRegion(sr)
	out := make([]SheetPos, 0, len(locs))
	for _, loc := range locs {
		if loc.Kind == LocationSheet {
			out = append(out, loc.Pos)
		}
	}
	return out
}

// ForwardInverseAgree reports whether every (loc, region) pair present
// in the forward index is also present in the inverse index and vice
// versa; used by tests to assert the invariant in §8 of the data model.
func (m *RegionMap) ForwardInverseAgree() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fwd := make(map[CodeCellLocation]map[regionAssoc]bool)
	for loc, assocs := range m.locToRegion {
		fwd[loc] = make(map[regionAssoc]bool)
		for _, a := range assocs {
			fwd[loc][a] = true
		}
	}
	inv := make(map[CodeCellLocation]map[regionAssoc]bool)
	for sheet, entries := range m.regionToLoc {
		for _, e := range entries {
			if inv[e.loc] == nil {
				inv[e.loc] = make(map[regionAssoc]bool)
			}
			inv[e.loc][regionAssoc{sheet: sheet, rect: e.rect}] = true
		}
	}
	if len(fwd) != len(inv) {
		return false
	}
	for loc, set := range fwd {
		other, ok := inv[loc]
		if !ok || len(other) != len(set) {
			return false
		}
		for a := range set {
			if !other[a] {
				return false
			}
		}
	}
	return true
}
