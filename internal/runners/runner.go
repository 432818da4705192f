// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package runners implements C4: one executor per code-cell language,
// each satisfying engine.Dispatcher so the transaction engine can drive
// them without knowing their concrete types.
package runners

import (
	"context"
	"fmt"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// Runner executes one code cell's body. A runner must never receive a
// token, team_id, or other credential directly — side-effecting
// callbacks (get_cells is the only one wired) are closures captured by
// the caller, never forwarded into the runner's own arguments.
type Runner interface {
	Language() grid.Language
	Run(ctx context.Context, req engine.RunRequest) (engine.DispatchOutcome, error)
}

// Registry dispatches a RunRequest to the runner registered for its
// language, implementing engine.Dispatcher.
type Registry struct {
	runners map[grid.Language]Runner
}

// NewRegistry builds an empty registry; register runners with Register.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[grid.Language]Runner)}
}

// Register adds r under its own Language(), overwriting any runner
// already registered for that language.
func (reg *Registry) Register(r Runner) {
	reg.runners[r.Language()] = r
}

// Dispatch implements engine.Dispatcher.
func (reg *Registry) Dispatch(ctx context.Context, req engine.RunRequest) (engine.DispatchOutcome, error) {
	r, ok := reg.runners[req.Language]
	if !ok {
		return engine.DispatchOutcome{}, fmt.Errorf("runners: no runner registered for language %q", req.Language)
	}
	return r.Run(ctx, req)
}

// bytesInResultLimit and lineOutputLimit cap a runner's StdOut/StdErr
// and result size; enforced by capOutput below rather than trusted
// runner behavior, per §4.4's "runners cap memory ... enforced by the
// worker" requirement.
const (
	bytesInResultLimit = 1 << 20 // 1 MiB
	lineOutputLimit    = 2000
)

func capOutput(s string) string {
	if len(s) <= bytesInResultLimit {
		return s
	}
	return s[:bytesInResultLimit]
}

func capLines(s string) string {
	lines := 0
	for i, r := range s {
		if r == '\n' {
			lines++
			if lines >= lineOutputLimit {
				return s[:i]
			}
		}
	}
	return s
}
