// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runners

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// programCache is a thread-safe LRU of compiled expr programs keyed by
// formula source, so a cell re-evaluated on every dependency change
// does not re-parse and re-compile its formula each time.
type programCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type programCacheEntry struct {
	code    string
	program *vm.Program
}

func newProgramCache(capacity int) *programCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &programCache{capacity: capacity, entries: make(map[string]*list.Element), order: list.New()}
}

func (c *programCache) get(code string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[code]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*programCacheEntry).program, true
	}
	return nil, false
}

func (c *programCache) put(code string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[code]; ok {
		c.order.MoveToFront(el)
		el.Value.(*programCacheEntry).program = program
		return
	}
	el := c.order.PushFront(&programCacheEntry{code: code, program: program})
	c.entries[code] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*programCacheEntry).code)
		}
	}
}

// FormulaRunner evaluates spreadsheet formulas via expr-lang/expr.
// Formula is always synchronous and pure (§4.4): it never suspends on
// get_cells, it calls it directly and returns a result or a RunError.
type FormulaRunner struct {
	cache *programCache
}

// NewFormulaRunner returns a FormulaRunner with its own compiled-program
// cache.
func NewFormulaRunner() *FormulaRunner {
	return &FormulaRunner{cache: newProgramCache(256)}
}

func (r *FormulaRunner) Language() grid.Language { return grid.LanguageFormula }

// formulaEnv is the expr evaluation environment: a CELL(a1) function
// the compiled expression calls to pull in referenced values. expr
// compiles against this struct's method set, so every formula function
// a cell may call must be a method here.
type formulaEnv struct {
	getCells engine.GetCellsFunc
	err      error
}

func (e *formulaEnv) CELL(a1 string) float64 {
	v, _, err := e.getCells(a1)
	if err != nil {
		e.err = err
		return 0
	}
	if v.Single.Kind == grid.KindNumber {
		f, _ := v.Single.Number.Float64()
		return f
	}
	return 0
}

func (r *FormulaRunner) Run(ctx context.Context, req engine.RunRequest) (engine.DispatchOutcome, error) {
	env := &formulaEnv{getCells: req.GetCells}

	program, ok := r.cache.get(req.Code)
	if !ok {
		compiled, err := expr.Compile(req.Code, expr.Env(env))
		if err != nil {
			return syncErrorOutcome(req, fmt.Sprintf("formula compile error: %s", err)), nil
		}
		program = compiled
		r.cache.put(req.Code, program)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return syncErrorOutcome(req, fmt.Sprintf("formula eval error: %s", err)), nil
	}
	if env.err != nil {
		return syncErrorOutcome(req, env.err.Error()), nil
	}

	var cv grid.CellValue
	switch v := out.(type) {
	case float64:
		cv = grid.NewNumber(decimalFromFloat(v))
	case bool:
		cv = grid.NewLogical(v)
	case string:
		cv = grid.NewText(v)
	default:
		cv = grid.NewText(fmt.Sprint(v))
	}

	return engine.DispatchOutcome{Run: &grid.CodeRun{
		Language:     grid.LanguageFormula,
		Code:         req.Code,
		Value:        grid.Value{Single: cv},
		LastModified: time.Now(),
	}}, nil
}

func syncErrorOutcome(req engine.RunRequest, msg string) engine.DispatchOutcome {
	return engine.DispatchOutcome{Run: &grid.CodeRun{
		Language: req.Language,
		Code:     req.Code,
		Err:      &grid.RunError{Msg: msg},
	}}
}
