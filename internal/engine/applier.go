// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package engine

import (
	"fmt"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// GridController is the engine's handle onto the cell graph: every
// operation variant mutates through it instead of touching a Sheet
// directly, so Apply can stay the single place that pairs a forward
// mutation with its reverse.
type GridController struct {
	Grid *grid.Grid
}

// NewGridController wraps g for use by the engine.
func NewGridController(g *grid.Grid) *GridController {
	return &GridController{Grid: g}
}

// Apply routes op to the matching mutation, appends the forward and
// reverse operations to txn's stacks, and records the dirty position(s)
// for the renderer. It is the sole entry point C3 uses to touch the
// grid, matching the applier contract: compute the reverse before
// mutating, apply, append both, record dirty bounds.
func (gc *GridController) Apply(txn *PendingTransaction, op Operation) error {
	sheet := gc.Grid.Sheet(op.SheetPos.Sheet)
	if sheet == nil {
		return fmt.Errorf("engine: unknown sheet %q", op.SheetPos.Sheet)
	}

	var reverse Operation
	switch op.Kind {
	case OpSetCellValue:
		old := sheet.SetCellValue(op.SheetPos.Position, op.Value)
		reverse = SetCellValueOp(op.SheetPos, old)
		gc.enqueueDependents(txn, op.SheetPos)

	case OpSetCodeCell:
		old := sheet.CellValue(op.SheetPos.Position)
		sheet.SetCellValue(op.SheetPos.Position, grid.NewCode(op.Language, op.Code))
		if old.IsCode() {
			reverse = SetCodeCellOp(op.SheetPos, old.Code.Language, old.Code.Code)
		} else {
			reverse = SetCellValueOp(op.SheetPos, old)
		}
		txn.CellsToCompute = append(txn.CellsToCompute, op.SheetPos)

	case OpComputeCode:
		if txn.Kind != TransactionKindUser {
			return fmt.Errorf("engine: ComputeCode only valid in a user transaction")
		}
		cv := sheet.CellValue(op.SheetPos.Position)
		if !cv.IsCode() {
			return fmt.Errorf("engine: ComputeCode at %s: no code cell", op.SheetPos)
		}
		old, _ := sheet.DataTableAt(op.SheetPos.Position)
		reverse = SetCodeRunOp(op.SheetPos, cloneCodeRun(old))
		if txn.markSeen(op.SheetPos) {
			txn.CellsToCompute = append(txn.CellsToCompute, op.SheetPos)
		}

	case OpSetCodeRun:
		old, _ := sheet.DataTableAt(op.SheetPos.Position)
		var dt *grid.DataTable
		if op.CodeRun != nil {
			dt = &grid.DataTable{Kind: grid.DataTableKindCodeRun, CodeRun: op.CodeRun}
		}
		sheet.SetDataTable(op.SheetPos.Position, dt)
		reverse = SetCodeRunOp(op.SheetPos, cloneCodeRun(old))
		gc.updateRegionMap(op.SheetPos, op.CodeRun)
		gc.enqueueDependents(txn, op.SheetPos)

	case OpSetValidation:
		if op.Validation == nil {
			return fmt.Errorf("engine: SetValidation missing validation")
		}
		var old *grid.Validation
		for i := range sheet.Validations {
			if sheet.Validations[i].ID == op.Validation.ID {
				v := sheet.Validations[i]
				old = &v
				sheet.Validations[i] = *op.Validation
				break
			}
		}
		if old == nil {
			sheet.Validations = append(sheet.Validations, *op.Validation)
			reverse = Operation{Kind: OpSetValidation, SheetPos: op.SheetPos, ValidationID: op.Validation.ID}
		} else {
			reverse = SetValidationOp(op.SheetPos, *old)
		}
		if err := evaluateValidation(sheet, *op.Validation); err != nil {
			return fmt.Errorf("engine: evaluate validation %s: %w", op.Validation.ID, err)
		}

	case OpSetValidationWarning:
		old := sheet.SetWarning(op.SheetPos.Position, op.ValidationID)
		reverse = SetValidationWarningOp(op.SheetPos, old)

	default:
		return fmt.Errorf("engine: unknown operation kind %v", op.Kind)
	}

	txn.ForwardOperations = append(txn.ForwardOperations, op)
	txn.ReverseOperations = append(txn.ReverseOperations, reverse)
	txn.markDirty(op.SheetPos)
	return nil
}

// enqueueDependents pushes every code cell whose CellsAccessed covers
// sp onto cells_to_compute, de-duplicated per transaction by Seen. When
// more than one dependent surfaces from the same mutation, the batch is
// topologically sorted first (BuildComputeOrder) against any
// dependency edges already visible between them — i.e. one dependent's
// last-known CellsAccessed overlapping another's anchor — so a cell
// that reads another newly-dirtied cell in the same batch is never
// scheduled ahead of it.
func (gc *GridController) enqueueDependents(txn *PendingTransaction, sp grid.SheetPos) {
	sheet := gc.Grid.Sheet(sp.Sheet)
	if sheet == nil {
		return
	}
	locs := sheet.Region.LocationsAssociatedWithRegion(grid.SheetRect{
		Rect:  grid.SingleCell(sp.Position),
		Sheet: sp.Sheet,
	})

	var batch []grid.SheetPos
	for _, loc := range locs {
		if loc.Kind != grid.LocationSheet {
			continue
		}
		if txn.markSeen(loc.Pos) {
			batch = append(batch, loc.Pos)
		}
	}
	if len(batch) == 0 {
		return
	}
	txn.CellsToCompute = append(txn.CellsToCompute, gc.orderBatch(batch)...)
}

// orderBatch topologically sorts a just-discovered batch of dependent
// cells against edges derived from their last computed CellsAccessed,
// so a dependent that reads another member of the same batch sorts
// after it. A single-member batch is returned unchanged without
// touching the toposort machinery at all.
func (gc *GridController) orderBatch(batch []grid.SheetPos) []grid.SheetPos {
	if len(batch) < 2 {
		return batch
	}
	deps := make(map[grid.SheetPos][]grid.SheetPos)
	for _, c := range batch {
		sheet := gc.Grid.Sheet(c.Sheet)
		if sheet == nil {
			continue
		}
		dt, ok := sheet.DataTableAt(c.Position)
		if !ok || dt == nil || dt.CodeRun == nil {
			continue
		}
		for _, rect := range dt.CodeRun.CellsAccessed.ToSheetRects() {
			for _, other := range batch {
				if other != c && other.Sheet == rect.Sheet && rect.Rect.Contains(other.Position) {
					deps[c] = append(deps[c], other)
				}
			}
		}
	}

	ordered, err := BuildComputeOrder(batch, deps)
	if err != nil {
		// Genuine cross-dependency cycle within the batch: let the
		// normal per-cell CheckDependencies path (which already detects
		// circular references) report it instead of failing the whole
		// enqueue; original order is a safe fallback.
		return batch
	}
	return ordered
}

// updateRegionMap replaces the accessed-region edges for the code cell
// at sp with the regions recorded on run, removing stale entries first.
func (gc *GridController) updateRegionMap(sp grid.SheetPos, run *grid.CodeRun) {
	sheet := gc.Grid.Sheet(sp.Sheet)
	if sheet == nil {
		return
	}
	loc := grid.NewSheetLocation(sp)
	if run == nil {
		sheet.Region.RemoveLoc(loc)
		return
	}
	sheet.Region.SetRegionsForLoc(loc, run.CellsAccessed.ToSheetRects())
}

func cloneCodeRun(dt *grid.DataTable) *grid.CodeRun {
	if dt == nil || dt.CodeRun == nil {
		return nil
	}
	r := *dt.CodeRun
	return &r
}
