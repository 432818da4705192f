// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runners

import (
	"context"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// JSServer is the seam this runner dispatches through: a single
// persistent JavaScript sub-process that the worker runtime (C6) keeps
// alive for the life of the process, reached over its websocket
// control channel (internal/runtime/jsserver.go). One sub-server
// serves every JavaScript cell the worker runs, so this runner never
// spawns a process itself.
type JSServer interface {
	// Execute hands code to the sub-server and blocks until it finishes
	// or the context is cancelled; a get_cells(...) call inside code
	// suspends the sub-server's own evaluation and round-trips through
	// getCells before resuming.
	Execute(ctx context.Context, code string, getCells engine.GetCellsFunc) (*grid.CodeRun, error)
}

// JavaScriptRunner hands code cell bodies to the worker's persistent
// JSServer. Like Python, JavaScript always suspends (§4.4): the runner
// returns Async immediately and delivers the result through
// OnAsyncComplete once the sub-server replies.
type JavaScriptRunner struct {
	server JSServer
}

// NewJavaScriptRunner returns a JavaScriptRunner bound to the worker's
// running JSServer.
func NewJavaScriptRunner(server JSServer) *JavaScriptRunner {
	return &JavaScriptRunner{server: server}
}

func (r *JavaScriptRunner) Language() grid.Language { return grid.LanguageJavascript }

func (r *JavaScriptRunner) Run(ctx context.Context, req engine.RunRequest) (engine.DispatchOutcome, error) {
	go func() {
		run, err := r.server.Execute(ctx, req.Code, req.GetCells)
		if err != nil {
			run = &grid.CodeRun{
				Language: grid.LanguageJavascript,
				Code:     req.Code,
				Err:      &grid.RunError{Msg: err.Error()},
			}
		}
		if req.OnAsyncComplete != nil {
			req.OnAsyncComplete(run)
		}
	}()
	return engine.DispatchOutcome{Async: true}, nil
}
