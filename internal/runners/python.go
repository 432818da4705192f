// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runners

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/bitfield/script"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// getCellsCallRe matches both get_cells("A1") and the q.cells("A1")
// spreadsheet-API spelling embedded in a code cell's body, so either
// can be resolved against the grid before the body reaches the
// interpreter subprocess.
var getCellsCallRe = regexp.MustCompile(`(?:get_cells|q\.cells)\(\s*["']([^"']+)["']\s*\)`)

// PythonRunner executes a code cell's body with python3 via a
// subprocess, resolving every get_cells(...) call against the engine
// first. §4.4 requires the runner to suspend on each get_cells request
// and resume after the engine answers; running entirely inside the
// goroutine spawned by Run (itself already off the scheduler's
// goroutine) and blocking on GetCells achieves the same effect without
// needing a bidirectional subprocess protocol.
type PythonRunner struct {
	interpreter string // defaults to "python3"
}

// NewPythonRunner returns a PythonRunner invoking the given
// interpreter binary (empty defaults to "python3").
func NewPythonRunner(interpreter string) *PythonRunner {
	if interpreter == "" {
		interpreter = "python3"
	}
	return &PythonRunner{interpreter: interpreter}
}

func (r *PythonRunner) Language() grid.Language { return grid.LanguagePython }

func (r *PythonRunner) Run(ctx context.Context, req engine.RunRequest) (engine.DispatchOutcome, error) {
	go func() {
		run := r.execute(ctx, req)
		if req.OnAsyncComplete != nil {
			req.OnAsyncComplete(run)
		}
	}()
	return engine.DispatchOutcome{Async: true}, nil
}

func (r *PythonRunner) execute(ctx context.Context, req engine.RunRequest) *grid.CodeRun {
	resolved, accessed, err := resolveCellReferences(req.Code, req.GetCells)
	if err != nil {
		return &grid.CodeRun{Language: grid.LanguagePython, Code: req.Code, Err: &grid.RunError{Msg: err.Error()}}
	}

	out, err := script.Exec(fmt.Sprintf("%s -c %q", r.interpreter, resolved)).String()
	if err != nil {
		return &grid.CodeRun{
			Language:      grid.LanguagePython,
			Code:          req.Code,
			CellsAccessed: accessed,
			Err:           &grid.RunError{Msg: err.Error()},
			StdErr:        capLines(capOutput(out)),
		}
	}

	return &grid.CodeRun{
		Language:      grid.LanguagePython,
		Code:          req.Code,
		CellsAccessed: accessed,
		Value:         grid.Value{Single: grid.NewText(capLines(capOutput(out)))},
		StdOut:        capLines(capOutput(out)),
		LastModified:  time.Now(),
	}
}

// resolveCellReferences rewrites every get_cells("A1")/q.cells("A1")
// call in code to a literal, already-resolved value, and records the
// ranges read into a CellsAccessed accumulator for the caller to
// attach to the CodeRun.
func resolveCellReferences(code string, getCells engine.GetCellsFunc) (string, grid.CellsAccessed, error) {
	accessed := grid.CellsAccessed{}
	var resolveErr error

	resolved := getCellsCallRe.ReplaceAllStringFunc(code, func(match string) string {
		sub := getCellsCallRe.FindStringSubmatch(match)
		a1 := sub[1]
		v, sr, err := getCells(a1)
		if err != nil {
			resolveErr = err
			return match
		}
		accessed.Add(sr)
		return pythonLiteral(v.Single)
	})
	if resolveErr != nil {
		return "", nil, resolveErr
	}
	return resolved, accessed, nil
}

// pythonLiteral renders v as a literal that a Python expression can
// use in place of the get_cells/q.cells call it replaces: numbers stay
// bare so "q.cells('A1') + 10" type-checks as int/float arithmetic
// rather than a string concatenation, booleans map to Python's
// capitalized spelling, and everything else is quoted text.
func pythonLiteral(v grid.CellValue) string {
	switch v.Kind {
	case grid.KindNumber:
		return v.Number.String()
	case grid.KindLogical:
		if v.Logical {
			return "True"
		}
		return "False"
	case grid.KindBlank:
		return "None"
	default:
		return fmt.Sprintf("%q", v.String())
	}
}
