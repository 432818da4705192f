// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package schema

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// Export serializes g into a Document at the current schema version.
// Every sheet's raw cells (including code cell source, not just
// computed values), data tables, and validations are carried so Import
// can reconstruct an equivalent Grid without recomputing anything —
// the snapshot a worker receives on startup already holds last-known
// results.
func Export(g *grid.Grid) (Document, error) {
	var sheets []any
	for _, id := range g.SortedSheetIDs() {
		sheet := g.Sheet(id)
		sheets = append(sheets, encodeSheet(sheet))
	}
	return Document{Version: Current, Body: map[string]any{"sheets": sheets}}, nil
}

// Import migrates doc forward to Current and rebuilds a Grid from its
// body. Sheets are added in the order they appear in the body, which
// Export preserves from Grid.SortedSheetIDs. NewGrid's default sheet
// is removed first, so the result holds exactly the body's sheets.
func Import(doc Document) (*grid.Grid, error) {
	migrated, err := Migrate(doc)
	if err != nil {
		return nil, fmt.Errorf("schema: import: %w", err)
	}

	g := grid.NewGrid()
	for _, s := range g.Sheets() {
		g.DeleteSheet(s.ID)
	}
	rawSheets, _ := migrated.Body["sheets"].([]any)
	for _, raw := range rawSheets {
		sm, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("schema: import: sheet entry is not an object")
		}
		if err := decodeSheetInto(g, sm); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func encodeSheet(sheet *grid.Sheet) map[string]any {
	var cells []any
	for _, pv := range sheet.AllCells() {
		cell := encodeCellValue(pv.Value)
		cell["x"] = pv.Pos.X
		cell["y"] = pv.Pos.Y
		cells = append(cells, cell)
	}

	var tables []any
	for _, adt := range sheet.AllDataTables() {
		tables = append(tables, encodeDataTable(adt))
	}

	var validations []any
	for _, v := range sheet.Validations {
		validations = append(validations, map[string]any{
			"id":   v.ID,
			"rule": v.Rule,
			"selection": map[string]any{
				"min_x": v.Selection.Min.X, "min_y": v.Selection.Min.Y,
				"max_x": v.Selection.Max.X, "max_y": v.Selection.Max.Y,
			},
		})
	}

	return map[string]any{
		"id":          string(sheet.ID),
		"name":        sheet.Name,
		"cells":       cells,
		"tables":      tables,
		"validations": validations,
	}
}

func decodeSheetInto(g *grid.Grid, sm map[string]any) error {
	name, _ := sm["name"].(string)
	id := g.AddSheet(name)
	sheet := g.Sheet(id)

	if rawCells, ok := sm["cells"].([]any); ok {
		for _, rc := range rawCells {
			cm, ok := rc.(map[string]any)
			if !ok {
				continue
			}
			pos := grid.Position{X: toInt64(cm["x"]), Y: toInt64(cm["y"])}
			v, err := decodeCellValue(cm)
			if err != nil {
				return fmt.Errorf("schema: import sheet %q: %w", name, err)
			}
			sheet.SetCellValue(pos, v)
		}
	}

	if rawTables, ok := sm["tables"].([]any); ok {
		for _, rt := range rawTables {
			tm, ok := rt.(map[string]any)
			if !ok {
				continue
			}
			anchor := grid.Position{X: toInt64(tm["anchor_x"]), Y: toInt64(tm["anchor_y"])}
			dt, err := decodeDataTable(tm)
			if err != nil {
				return fmt.Errorf("schema: import sheet %q: %w", name, err)
			}
			sheet.SetDataTable(anchor, dt)
		}
	}

	if rawValidations, ok := sm["validations"].([]any); ok {
		for _, rv := range rawValidations {
			vm, ok := rv.(map[string]any)
			if !ok {
				continue
			}
			sel, _ := vm["selection"].(map[string]any)
			sheet.Validations = append(sheet.Validations, grid.Validation{
				ID:   stringField(vm["id"]),
				Rule: stringField(vm["rule"]),
				Selection: grid.Rect{
					Min: grid.Position{X: toInt64(sel["min_x"]), Y: toInt64(sel["min_y"])},
					Max: grid.Position{X: toInt64(sel["max_x"]), Y: toInt64(sel["max_y"])},
				},
			})
		}
	}
	return nil
}

func encodeDataTable(adt grid.AnchoredDataTable) map[string]any {
	dt := adt.Table
	out := map[string]any{
		"anchor_x":     adt.Anchor.X,
		"anchor_y":     adt.Anchor.Y,
		"kind":         uint8(dt.Kind),
		"name":         dt.Name,
		"show_header":  dt.ShowHeader,
		"sort_enabled": dt.SortEnabled,
	}
	switch dt.Kind {
	case grid.DataTableKindCodeRun:
		if dt.CodeRun != nil {
			out["code_run"] = encodeCodeRun(dt.CodeRun)
		}
	case grid.DataTableKindImport:
		out["import_value"] = encodeValue(dt.Import)
	}
	return out
}

func decodeDataTable(tm map[string]any) (*grid.DataTable, error) {
	dt := &grid.DataTable{
		Kind:        grid.DataTableKind(toUint8(tm["kind"])),
		Name:        stringField(tm["name"]),
		ShowHeader:  boolField(tm["show_header"]),
		SortEnabled: boolField(tm["sort_enabled"]),
	}
	switch dt.Kind {
	case grid.DataTableKindCodeRun:
		if cr, ok := tm["code_run"].(map[string]any); ok {
			run, err := decodeCodeRun(cr)
			if err != nil {
				return nil, err
			}
			dt.CodeRun = run
		}
	case grid.DataTableKindImport:
		if iv, ok := tm["import_value"].(map[string]any); ok {
			v, err := decodeValue(iv)
			if err != nil {
				return nil, err
			}
			dt.Import = v
		}
	}
	return dt, nil
}

func encodeCodeRun(run *grid.CodeRun) map[string]any {
	out := map[string]any{
		"language":      string(run.Language),
		"code":          run.Code,
		"value":         encodeValue(run.Value),
		"std_out":       run.StdOut,
		"std_err":       run.StdErr,
		"return_type":   run.ReturnType,
		"line_number":   run.LineNumber,
		"spill_error":   run.SpillError,
		"last_modified": run.LastModified.Unix(),
	}
	if run.Err != nil {
		errOut := map[string]any{"msg": run.Err.Msg}
		if run.Err.Span != nil {
			errOut["span_start"] = run.Err.Span.Start
			errOut["span_end"] = run.Err.Span.End
		}
		out["err"] = errOut
	}
	var accessed []any
	for sheetID, rects := range run.CellsAccessed {
		for _, r := range rects {
			accessed = append(accessed, map[string]any{
				"sheet": string(sheetID),
				"min_x": r.Min.X, "min_y": r.Min.Y,
				"max_x": r.Max.X, "max_y": r.Max.Y,
			})
		}
	}
	out["cells_accessed"] = accessed
	return out
}

func decodeCodeRun(cr map[string]any) (*grid.CodeRun, error) {
	v, err := decodeValue(toMap(cr["value"]))
	if err != nil {
		return nil, err
	}
	run := &grid.CodeRun{
		Language:   grid.Language(stringField(cr["language"])),
		Code:       stringField(cr["code"]),
		Value:      v,
		StdOut:     stringField(cr["std_out"]),
		StdErr:     stringField(cr["std_err"]),
		ReturnType: stringField(cr["return_type"]),
		LineNumber: int(toInt64(cr["line_number"])),
		SpillError: boolField(cr["spill_error"]),
		LastModified: time.Unix(toInt64(cr["last_modified"]), 0).UTC(),
	}
	if errMap, ok := cr["err"].(map[string]any); ok {
		runErr := &grid.RunError{Msg: stringField(errMap["msg"])}
		if _, ok := errMap["span_start"]; ok {
			runErr.Span = &grid.Span{Start: int(toInt64(errMap["span_start"])), End: int(toInt64(errMap["span_end"]))}
		}
		run.Err = runErr
	}
	run.CellsAccessed = grid.CellsAccessed{}
	if rawAccessed, ok := cr["cells_accessed"].([]any); ok {
		for _, ra := range rawAccessed {
			am, ok := ra.(map[string]any)
			if !ok {
				continue
			}
			run.CellsAccessed.Add(grid.SheetRect{
				Sheet: grid.SheetID(stringField(am["sheet"])),
				Rect: grid.Rect{
					Min: grid.Position{X: toInt64(am["min_x"]), Y: toInt64(am["min_y"])},
					Max: grid.Position{X: toInt64(am["max_x"]), Y: toInt64(am["max_y"])},
				},
			})
		}
	}
	return run, nil
}

func encodeValue(v grid.Value) map[string]any {
	if !v.IsArray() {
		return map[string]any{"single": encodeCellValue(v.Single)}
	}
	rows := make([]any, len(v.Array))
	for y, row := range v.Array {
		encodedRow := make([]any, len(row))
		for x, cv := range row {
			encodedRow[x] = encodeCellValue(cv)
		}
		rows[y] = encodedRow
	}
	return map[string]any{"array": rows}
}

func decodeValue(m map[string]any) (grid.Value, error) {
	if m == nil {
		return grid.Value{}, nil
	}
	if single, ok := m["single"].(map[string]any); ok {
		cv, err := decodeCellValue(single)
		return grid.Value{Single: cv}, err
	}
	if rawRows, ok := m["array"].([]any); ok {
		arr := make([][]grid.CellValue, len(rawRows))
		for y, rawRow := range rawRows {
			row, _ := rawRow.([]any)
			arr[y] = make([]grid.CellValue, len(row))
			for x, rawCell := range row {
				cm, _ := rawCell.(map[string]any)
				cv, err := decodeCellValue(cm)
				if err != nil {
					return grid.Value{}, err
				}
				arr[y][x] = cv
			}
		}
		return grid.Value{Array: arr}, nil
	}
	return grid.Value{}, nil
}

// encodeCellValue renders v's fields keyed so decodeCellValue can
// reconstruct it exactly; x/y are added by the caller when the value
// anchors a sheet cell rather than living inside a Value array.
func encodeCellValue(v grid.CellValue) map[string]any {
	out := map[string]any{"kind": uint8(v.Kind)}
	switch v.Kind {
	case grid.KindText:
		out["text"] = v.Text
	case grid.KindHTML:
		out["text"] = v.HTML
	case grid.KindNumber:
		out["number"] = v.Number.String()
	case grid.KindLogical:
		out["logical"] = v.Logical
	case grid.KindDate, grid.KindTime, grid.KindDateTime:
		out["time"] = v.Time.Unix()
	case grid.KindDuration:
		out["duration_ns"] = int64(v.Duration)
	case grid.KindError:
		if v.Err != nil {
			out["err_msg"] = v.Err.Msg
		}
	case grid.KindImage:
		out["image"] = v.Image
	case grid.KindCode:
		out["code_language"] = string(v.Code.Language)
		out["code"] = v.Code.Code
	case grid.KindRichText:
		var spans []any
		for _, s := range v.Rich {
			spans = append(spans, map[string]any{"text": s.Text, "bold": s.Bold})
		}
		out["rich"] = spans
	}
	return out
}

func decodeCellValue(m map[string]any) (grid.CellValue, error) {
	if m == nil {
		return grid.Blank, nil
	}
	kind := grid.CellKind(toUint8(m["kind"]))
	switch kind {
	case grid.KindBlank:
		return grid.Blank, nil
	case grid.KindText:
		return grid.NewText(stringField(m["text"])), nil
	case grid.KindHTML:
		return grid.CellValue{Kind: grid.KindHTML, HTML: stringField(m["text"])}, nil
	case grid.KindNumber:
		d, err := decimal.NewFromString(stringField(m["number"]))
		if err != nil {
			return grid.CellValue{}, fmt.Errorf("schema: decode number cell: %w", err)
		}
		return grid.NewNumber(d), nil
	case grid.KindLogical:
		return grid.NewLogical(boolField(m["logical"])), nil
	case grid.KindCode:
		return grid.NewCode(grid.Language(stringField(m["code_language"])), stringField(m["code"])), nil
	case grid.KindImage:
		return grid.CellValue{Kind: grid.KindImage, Image: stringField(m["image"])}, nil
	case grid.KindError:
		return grid.NewError(&grid.RunError{Msg: stringField(m["err_msg"])}), nil
	case grid.KindDate, grid.KindTime, grid.KindDateTime:
		return grid.CellValue{Kind: kind, Time: time.Unix(toInt64(m["time"]), 0).UTC()}, nil
	case grid.KindDuration:
		return grid.CellValue{Kind: kind, Duration: time.Duration(toInt64(m["duration_ns"]))}, nil
	case grid.KindRichText:
		raw, _ := m["rich"].([]any)
		spans := make([]grid.RichTextSpan, 0, len(raw))
		for _, r := range raw {
			sm := toMap(r)
			if sm == nil {
				continue
			}
			spans = append(spans, grid.RichTextSpan{Text: stringField(sm["text"]), Bold: boolField(sm["bold"])})
		}
		return grid.CellValue{Kind: kind, Rich: spans}, nil
	default:
		return grid.CellValue{Kind: kind}, nil
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toUint8(v any) uint8 {
	return uint8(toInt64(v))
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

func boolField(v any) bool {
	b, _ := v.(bool)
	return b
}

func toMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
