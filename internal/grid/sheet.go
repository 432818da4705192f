// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package grid

import "sync"

// BorderStyle describes one edge of a cell's border.
type BorderStyle struct {
	Present bool
	Color   string
	Width   int
}

// FormatSummary aggregates the formatting layers visible at one
// position, the shape CellFormatSummary returns.
type FormatSummary struct {
	Bold      bool
	Italic    bool
	FillColor string
	Align     string
}

// Validation is a rule attached to a selection; re-evaluated whenever
// SetValidation touches its id.
type Validation struct {
	ID        string
	Selection Rect
	Rule      string // opaque rule expression, interpreted by the validation evaluator
}

// Sheet owns the cell graph for one worksheet: the sparse value store,
// the insertion-ordered data-table map, formatting/border layers, and
// the RegionMap indexing every code cell's accessed regions. Inside one
// worker there is a single cooperative executor (internal/engine) that
// is the only writer; the mutex here exists only so a second, read-only
// goroutine (a test, for example) can observe
// a Sheet without racing the engine, not to serialize engine writes
// against each other.
type Sheet struct {
	ID   SheetID
	Name string

	mu    sync.RWMutex
	cells map[Position]CellValue

	tables         map[Position]*DataTable
	tableOrder     []Position
	insertionIndex map[Position]int
	nextInsertion  int

	colWidths  map[int64]float64
	rowHeights map[int64]float64

	Bold      *Contiguous2D[bool]
	Italic    *Contiguous2D[bool]
	FillColor *Contiguous2D[string]
	Align     *Contiguous2D[string]

	BordersHorizontal *Contiguous2D[BorderStyle]
	BordersVertical   *Contiguous2D[BorderStyle]

	Validations []Validation
	warnings    map[Position]string // pos -> validation id

	Region *RegionMap

	// ThumbnailSelection is the authoritative selection for C7, set by
	// the user ("offsets.thumbnail()" in the data model); nil means the
	// renderer falls back to the caller-provided selection.
	ThumbnailSelection *Rect
}

// NewSheet returns an empty sheet.
func NewSheet(id SheetID, name string) *Sheet {
	return &Sheet{
		ID:                id,
		Name:              name,
		cells:             make(map[Position]CellValue),
		tables:            make(map[Position]*DataTable),
		insertionIndex:    make(map[Position]int),
		colWidths:         make(map[int64]float64),
		rowHeights:        make(map[int64]float64),
		Bold:              NewContiguous2D[bool](),
		Italic:            NewContiguous2D[bool](),
		FillColor:         NewContiguous2D[string](),
		Align:             NewContiguous2D[string](),
		BordersHorizontal: NewContiguous2D[BorderStyle](),
		BordersVertical:   NewContiguous2D[BorderStyle](),
		warnings:          make(map[Position]string),
		Region:            NewRegionMap(),
	}
}

// CellValue returns the raw stored value at pos, Blank for unset
// positions. Reads never fail.
func (s *Sheet) CellValue(pos Position) CellValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.cells[pos]; ok {
		return v
	}
	return Blank
}

// SetCellValue writes v at pos and returns the previous value (for the
// operation applier's reverse op). Any write to a position owned by a
// data-table's output rectangle marks that table's code run
// spill_error = true until the conflict is cleared.
func (s *Sheet) SetCellValue(pos Position, v CellValue) CellValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := Blank
	if existing, ok := s.cells[pos]; ok {
		old = existing
	}
	if v.IsBlank() {
		delete(s.cells, pos)
	} else {
		s.cells[pos] = v
	}
	s.recomputeSpillConflictsLocked(pos)
	return old
}

// SetDataTable inserts or removes the data table anchored at pos and
// returns the previous one, if any.
func (s *Sheet) SetDataTable(pos Position, dt *DataTable) *DataTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.tables[pos]
	if dt == nil {
		delete(s.tables, pos)
		delete(s.insertionIndex, pos)
		for i, p := range s.tableOrder {
			if p == pos {
				s.tableOrder = append(s.tableOrder[:i], s.tableOrder[i+1:]...)
				break
			}
		}
	} else {
		if _, existed := s.tables[pos]; !existed {
			s.insertionIndex[pos] = s.nextInsertion
			s.nextInsertion++
			s.tableOrder = append(s.tableOrder, pos)
		}
		s.tables[pos] = dt
	}
	s.recomputeSpillConflictsLocked(pos)
	return old
}

// DataTableAt returns the data table anchored exactly at pos, if any.
func (s *Sheet) DataTableAt(pos Position) (*DataTable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dt, ok := s.tables[pos]
	return dt, ok
}

// DisplayValue returns the post-execution visible value at pos, honoring
// data-table outputs and spill errors: a plain (non-code) cell value
// always wins over any table output it conflicts with; a spilled table
// renders entirely blank.
func (s *Sheet) DisplayValue(pos Position) CellValue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cv, ok := s.cells[pos]; ok && !cv.IsBlank() && !cv.IsCode() {
		return cv
	}

	apos, dt, found := s.coveringTableLocked(pos)
	if !found {
		return Blank
	}
	if dt.SpillError() {
		return Blank
	}
	var v Value
	switch dt.Kind {
	case DataTableKindCodeRun:
		if dt.CodeRun == nil {
			return Blank
		}
		if dt.CodeRun.Err != nil {
			if pos == apos {
				return NewError(dt.CodeRun.Err)
			}
			return Blank
		}
		v = dt.CodeRun.Value
	case DataTableKindImport:
		v = dt.Import
	}
	return v.At(pos.X-apos.X, pos.Y-apos.Y)
}

// coveringTableLocked finds the table (if any) whose anchor is pos or
// whose output rectangle contains pos. There is no spatial index for
// this per-sheet lookup in the retrieved example pack either (see
// RegionMap's doc comment); sheets hold few enough live tables in
// practice that a linear scan is the pragmatic, grounded choice over
// fabricating an R-tree dependency.
func (s *Sheet) coveringTableLocked(pos Position) (Position, *DataTable, bool) {
	if dt, ok := s.tables[pos]; ok {
		return pos, dt, true
	}
	for apos, dt := range s.tables {
		if dt.OutputRect(apos).Contains(pos) {
			return apos, dt, true
		}
	}
	return Position{}, nil, false
}

// recomputeSpillConflictsLocked refreshes the spill_error flag of every
// table whose output rectangle contains pos. Tie-break rule: the table
// whose anchor is earlier in insertion order keeps its output; later
// ones become spill_error.
func (s *Sheet) recomputeSpillConflictsLocked(pos Position) {
	for apos, dt := range s.tables {
		if dt.OutputRect(apos).Contains(pos) {
			s.refreshTableSpillLocked(apos, dt)
		}
	}
}

func (s *Sheet) refreshTableSpillLocked(apos Position, dt *DataTable) {
	if dt.Kind != DataTableKindCodeRun || dt.CodeRun == nil {
		return
	}
	rect := dt.OutputRect(apos)
	spill := false

	// An anchor that itself lands inside another, earlier-inserted
	// table's output rect loses outright, regardless of what its own
	// rect contains.
	for oapos, other := range s.tables {
		if oapos == apos {
			continue
		}
		if other.OutputRect(oapos).Contains(apos) && s.insertionIndex[apos] > s.insertionIndex[oapos] {
			dt.CodeRun.SpillError = true
			return
		}
	}

outer:
	for y := rect.Min.Y; y <= rect.Max.Y; y++ {
		for x := rect.Min.X; x <= rect.Max.X; x++ {
			p := Position{X: x, Y: y}
			if p == apos {
				continue
			}
			if cv, ok := s.cells[p]; ok && !cv.IsBlank() {
				spill = true
				break outer
			}
			if other, ok := s.tables[p]; ok && other != dt {
				if s.insertionIndex[p] < s.insertionIndex[apos] {
					spill = true
					break outer
				}
			}
		}
	}
	dt.CodeRun.SpillError = spill
}

// IterCodeOutputInRect reports every table whose output rectangle
// intersects rect, in insertion order (the order ties are broken in
// for spill precedence, and a reasonable stand-in for "lexicographic by
// sheet, then by R-tree traversal" when there is no R-tree).
func (s *Sheet) IterCodeOutputInRect(rect Rect) []CodeOutputEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []CodeOutputEntry
	for _, apos := range s.tableOrder {
		dt := s.tables[apos]
		outRect := dt.OutputRect(apos)
		if outRect.Intersects(rect) {
			out = append(out, CodeOutputEntry{Anchor: apos, Rect: outRect, Table: dt})
		}
	}
	return out
}

// CodeOutputEntry is one result of IterCodeOutputInRect.
type CodeOutputEntry struct {
	Anchor Position
	Rect   Rect
	Table  *DataTable
}

// AllCells returns every raw cell value directly stored on the sheet —
// everything SetCellValue has ever written, including code cell bodies
// — as opposed to SelectionValues' computed DisplayValue. This is the
// form internal/schema's Export needs to serialize a sheet without
// losing code cell source text under its cached result.
func (s *Sheet) AllCells() []PosValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PosValue, 0, len(s.cells))
	for p, v := range s.cells {
		out = append(out, PosValue{Pos: p, Value: v})
	}
	return out
}

// AnchoredDataTable pairs a DataTable with the position it is anchored
// at, the form AllDataTables returns.
type AnchoredDataTable struct {
	Anchor Position
	Table  *DataTable
}

// AllDataTables returns every data table on the sheet in insertion
// order, the order CodeOutputEntry and Export/Import preserve so a
// re-imported sheet enumerates tables the same way the original did.
func (s *Sheet) AllDataTables() []AnchoredDataTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AnchoredDataTable, 0, len(s.tableOrder))
	for _, apos := range s.tableOrder {
		out = append(out, AnchoredDataTable{Anchor: apos, Table: s.tables[apos]})
	}
	return out
}

// Default cell dimensions used wherever no custom size has been set,
// matching the data model's own rendering defaults.
const (
	DefaultColumnWidth = 100.0
	DefaultRowHeight   = 21.0
)

// ColumnWidth returns the width of column x, or DefaultColumnWidth if
// no custom width has been set.
func (s *Sheet) ColumnWidth(x int64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.colWidths[x]; ok {
		return w
	}
	return DefaultColumnWidth
}

// RowHeight returns the height of row y, or DefaultRowHeight if no
// custom height has been set.
func (s *Sheet) RowHeight(y int64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.rowHeights[y]; ok {
		return h
	}
	return DefaultRowHeight
}

// SetColumnWidth sets a custom width for column x.
func (s *Sheet) SetColumnWidth(x int64, width float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colWidths[x] = width
}

// SetRowHeight sets a custom height for row y.
func (s *Sheet) SetRowHeight(y int64, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowHeights[y] = height
}

// SetWarning sets or clears the validation-warning marker at pos and
// returns the id that was previously there (""  if none), letting the
// applier build a symmetric reverse operation. validationID == ""
// clears the marker.
func (s *Sheet) SetWarning(pos Position, validationID string) (old string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.warnings[pos]
	if validationID == "" {
		delete(s.warnings, pos)
	} else {
		s.warnings[pos] = validationID
	}
	return old
}

// WarningAt returns the id of the validation warning set at pos, or ""
// if none.
func (s *Sheet) WarningAt(pos Position) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warnings[pos]
}

// CellFormatSummary aggregates the formatting layers at pos.
func (s *Sheet) CellFormatSummary(pos Position) FormatSummary {
	bold, _ := s.Bold.Get(pos)
	italic, _ := s.Italic.Get(pos)
	fill, _ := s.FillColor.Get(pos)
	align, _ := s.Align.Get(pos)
	return FormatSummary{Bold: bold, Italic: italic, FillColor: fill, Align: align}
}

// BordersInRect returns every horizontal and vertical border block
// intersecting rect.
func (s *Sheet) BordersInRect(rect Rect) (horizontal, vertical []Block[BorderStyle]) {
	return s.BordersHorizontal.IntersectingBlocks(rect), s.BordersVertical.IntersectingBlocks(rect)
}

// SelectionValues returns (position, display value) for every non-blank
// cell in sel, plus any cell covered by a non-spilled table's output.
func (s *Sheet) SelectionValues(sel Rect) []PosValue {
	var out []PosValue
	s.mu.RLock()
	width, height := sel.Width(), sel.Height()
	s.mu.RUnlock()
	if width == Unbounded || height == Unbounded {
		// Bound the scan to cells and table outputs actually present;
		// an unbounded selection never needs to materialize every cell.
		s.mu.RLock()
		positions := make([]Position, 0, len(s.cells))
		for p := range s.cells {
			if sel.Contains(p) {
				positions = append(positions, p)
			}
		}
		for apos, dt := range s.tables {
			rect := dt.OutputRect(apos)
			if !rect.Intersects(sel) {
				continue
			}
			for y := rect.Min.Y; y <= rect.Max.Y; y++ {
				for x := rect.Min.X; x <= rect.Max.X; x++ {
					p := Position{X: x, Y: y}
					if sel.Contains(p) {
						positions = append(positions, p)
					}
				}
			}
		}
		s.mu.RUnlock()
		for _, p := range positions {
			out = append(out, PosValue{Pos: p, Value: s.DisplayValue(p)})
		}
		return out
	}
	for y := sel.Min.Y; y <= sel.Max.Y; y++ {
		for x := sel.Min.X; x <= sel.Max.X; x++ {
			p := Position{X: x, Y: y}
			v := s.DisplayValue(p)
			if !v.IsBlank() {
				out = append(out, PosValue{Pos: p, Value: v})
			}
		}
	}
	return out
}

// PosValue pairs a position with its display value.
type PosValue struct {
	Pos   Position
	Value CellValue
}
