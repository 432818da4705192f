// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package controller

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	qtemporal "github.com/quadratic-labs/qd-engine/internal/temporal"
)

// scanActivityOptions bounds the ScanOnce activity the same way the
// teacher's activity_options.go shapes non-idempotent activities: a
// short timeout and no automatic retry, since a failed scan is simply
// tried again on the workflow's next sleep-and-loop iteration.
func scanActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
}

// ScanWorkflow drives the controller's scan loop as a long-running
// Temporal workflow, giving the scan-and-spawn decision the same
// durability/visibility Temporal gives the teacher's task workflows:
// a crashed controller process resumes exactly where it left off
// instead of silently dropping a scan tick.
func ScanWorkflow(ctx workflow.Context, intervalSeconds int) error {
	ctx = workflow.WithActivityOptions(ctx, scanActivityOptions())
	interval := time.Duration(intervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	for {
		if err := workflow.ExecuteActivity(ctx, ScanActivityName).Get(ctx, nil); err != nil {
			workflow.GetLogger(ctx).Error("scan activity failed", "error", err)
		}
		if err := workflow.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// ScanActivityName is registered against the activity function bound
// to a specific *Controller at startup (see Host.Start).
const ScanActivityName = "controller.ScanOnce"

// Host wires a Controller's scan loop onto a Temporal worker, reusing
// the teacher's generic internal/temporal.TemporalWorker bootstrap
// rather than duplicating client/worker setup.
type Host struct {
	worker     *qtemporal.TemporalWorker
	controller *Controller
}

// NewHost builds the Temporal-backed host for a scan loop.
func NewHost(ctx context.Context, taskQueue string, c *Controller) (*Host, error) {
	w, err := qtemporal.NewTemporalWorker(ctx, qtemporal.WorkerOptions{TaskQueue: taskQueue})
	if err != nil {
		return nil, err
	}
	h := &Host{worker: w, controller: c}
	w.RegisterWorkflow(ScanWorkflow)
	w.RegisterActivityWithOptions(h.scanActivity, ScanActivityName)
	return h, nil
}

func (h *Host) scanActivity(ctx context.Context) error {
	return h.controller.ScanOnce(ctx)
}

// Start begins polling the task queue.
func (h *Host) Start(ctx context.Context) error { return h.worker.Start(ctx) }

// Stop gracefully shuts the worker down.
func (h *Host) Stop(ctx context.Context) error { return h.worker.Stop(ctx) }

// Close releases the underlying Temporal client.
func (h *Host) Close() error { return h.worker.Close() }
