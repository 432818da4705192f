// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package engine

import (
	"github.com/expr-lang/expr"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// validationEnv is the expr evaluation environment a Validation.Rule
// compiles against, mirroring internal/runners/formula.go's formulaEnv
// shape: a single field exposing the cell's display value, coerced to
// whatever native Go type expr can compare against.
type validationEnv struct {
	Value any
}

// nativeValue coerces a CellValue to the Go type expr-lang expressions
// compare against (float64/string/bool); anything else (Blank, Error,
// Code, …) becomes nil, which only satisfies rules that explicitly
// check for it.
func nativeValue(v grid.CellValue) any {
	switch v.Kind {
	case grid.KindNumber:
		f, _ := v.Number.Float64()
		return f
	case grid.KindText:
		return v.Text
	case grid.KindLogical:
		return v.Logical
	default:
		return nil
	}
}

// evaluateValidation re-evaluates v's rule against every non-blank cell
// in its selection, setting or clearing the warning marker at each
// position per §4.2's SetValidation contract. A rule that fails to
// compile is reported to the caller rather than silently treated as
// passing or failing everywhere.
func evaluateValidation(sheet *grid.Sheet, v grid.Validation) error {
	program, err := expr.Compile(v.Rule, expr.Env(validationEnv{}), expr.AsBool())
	if err != nil {
		return err
	}
	for _, pv := range sheet.SelectionValues(v.Selection) {
		out, runErr := expr.Run(program, validationEnv{Value: nativeValue(pv.Value)})
		satisfied := runErr == nil && out.(bool)
		if satisfied {
			sheet.SetWarning(pv.Pos, "")
		} else {
			sheet.SetWarning(pv.Pos, v.ID)
		}
	}
	return nil
}
