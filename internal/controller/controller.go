// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

// WorkerImage is the image every spawned worker runs; overridable for
// tests via Controller.Image.
const WorkerImage = "quadratic/worker:latest"

const (
	defaultCPURequestMilli = 500
	defaultCPULimitMilli   = 2000
	defaultMemRequestBytes = 2 << 30 // 2 GiB
	defaultMemLimitBytes   = 8 << 30 // 8 GiB
	defaultWorkerDeadline  = 30 * time.Minute
	defaultWorkerTTL       = 5 * time.Minute
)

// Controller implements C5: the periodic scan loop plus the
// double-check-then-lock spawn protocol from spec.md §4.5.
type Controller struct {
	Queue     Queue
	Scheduler ContainerScheduler
	Locks     *CreateLocks
	Image     string
	Log       *slog.Logger

	// SpecTemplate, when set, supplies deployment-wide WorkerSpec
	// defaults (resource limits, extra env) loaded from an operator's
	// YAML file; nil means the package's built-in defaults apply.
	SpecTemplate *WorkerSpecTemplate

	// SpawnLimiter throttles how fast trySpawn submits new workers to
	// the container scheduler — a flood of simultaneously-queued files
	// (a bulk import, a reconnect storm) shouldn't turn into a thundering
	// herd of simultaneous container creates. nil means unlimited.
	SpawnLimiter *rate.Limiter

	// active is the controller's own view of file_id -> handle. Scan
	// iterations and the HTTP heartbeat/ready handlers touch it from
	// different goroutines, so it uses xsync.MapOf's lock-striped map
	// instead of a single mutex guarding a plain map.
	active *xsync.MapOf[string, WorkerHandle]

	metrics *Metrics
}

// NewController wires a Controller from its three collaborators. log
// may be nil (defaults to slog.Default()).
func NewController(queue Queue, scheduler ContainerScheduler, locks *CreateLocks, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		Queue:     queue,
		Scheduler: scheduler,
		Locks:     locks,
		Image:     WorkerImage,
		Log:       log,
		active:    xsync.NewMapOf[string, WorkerHandle](),
		metrics:   NewMetrics(),
	}
}

// Run drives the periodic scan loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.ScanOnce(ctx); err != nil {
				c.Log.Error("scan failed", "error", err)
			}
		}
	}
}

// ScanOnce runs one iteration of spec.md §4.5's scan loop:
//  1. distinct pending file ids
//  2. active (non-terminating) worker file ids
//  3. for each pending-not-active file, still pending on rescan, spawn
func (c *Controller) ScanOnce(ctx context.Context) error {
	pending, err := c.Queue.PendingFileIDs(ctx)
	if err != nil {
		return fmt.Errorf("controller: query pending file ids: %w", err)
	}

	active, err := c.Scheduler.ActiveFileIDs(ctx)
	if err != nil {
		return fmt.Errorf("controller: query active worker file ids: %w", err)
	}
	c.metrics.ActiveWorkers.Set(float64(len(active)))

	candidates := make([]string, 0, len(pending))
	for _, fileID := range pending {
		if !active[fileID] {
			candidates = append(candidates, fileID)
		}
	}

	for _, fileID := range candidates {
		stillPending, err := c.Queue.PendingFileIDs(ctx)
		if err != nil {
			c.Log.Error("rescan failed", "file_id", fileID, "error", err)
			continue
		}
		if !containsStr(stillPending, fileID) {
			continue // drained between the batch scan and this file's turn
		}
		if err := c.trySpawn(ctx, fileID); err != nil {
			c.Log.Error("spawn failed", "file_id", fileID, "error", err)
			c.metrics.SpawnFailures.Inc()
		}
	}

	c.shutdownIdle(ctx, pending)
	return nil
}

// trySpawn implements the spawn protocol: double-check under a local
// mutex, then the per-file create lock, then submit.
func (c *Controller) trySpawn(ctx context.Context, fileID string) error {
	if _, exists := c.active.Load(fileID); exists {
		return nil
	}

	const holder = "controller-scan"
	granted, err := c.Locks.TryAcquire(fileID, holder)
	if err != nil {
		return err
	}
	if !granted {
		return nil // another scan is already creating this file's worker
	}
	defer c.Locks.Release(fileID, holder)

	// Re-check a second time immediately before creating, closing the
	// race where a worker appeared between the batch scan and here.
	active, err := c.Scheduler.ActiveFileIDs(ctx)
	if err != nil {
		return fmt.Errorf("controller: re-check active workers for %s: %w", fileID, err)
	}
	if active[fileID] {
		return nil
	}

	if c.SpawnLimiter != nil {
		if err := c.SpawnLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("controller: spawn rate limit wait for %s: %w", fileID, err)
		}
	}

	spec := WorkerSpec{
		FileID: fileID,
		Image:  c.Image,
		Env: map[string]string{
			"FILE_ID": fileID,
		},
	}
	spec = c.SpecTemplate.Apply(spec)
	spec = fillSpecDefaults(spec)

	workerID, err := c.Scheduler.Spawn(ctx, spec)
	c.metrics.SpawnAttempts.Inc()
	if err != nil {
		return fmt.Errorf("controller: spawn worker for file %s: %w", fileID, err)
	}

	c.active.Store(fileID, WorkerHandle{FileID: fileID, WorkerID: workerID, HealthAt: time.Now()})
	return nil
}

// shutdownIdle marks every tracked worker whose file is no longer
// pending for deletion, per spec.md's shutdown protocol.
func (c *Controller) shutdownIdle(ctx context.Context, pending []string) {
	pendingSet := make(map[string]bool, len(pending))
	for _, id := range pending {
		pendingSet[id] = true
	}

	toShutdown := make([]WorkerHandle, 0)
	c.active.Range(func(fileID string, handle WorkerHandle) bool {
		if !pendingSet[fileID] {
			toShutdown = append(toShutdown, handle)
		}
		return true
	})
	for _, handle := range toShutdown {
		c.active.Delete(handle.FileID)
	}

	for _, handle := range toShutdown {
		if err := c.Scheduler.MarkForDeletion(ctx, handle.WorkerID); err != nil {
			c.Log.Error("mark for deletion failed", "file_id", handle.FileID, "worker_id", handle.WorkerID, "error", err)
		}
	}
}

// CountActiveWorkers exposes capacity for a higher layer's admission
// control, per spec.md §4.5.
func (c *Controller) CountActiveWorkers() int {
	return c.active.Size()
}

// fillSpecDefaults applies the package's built-in resource/deadline
// defaults to any field the caller (and any SpecTemplate already
// merged in) left zero.
func fillSpecDefaults(spec WorkerSpec) WorkerSpec {
	if spec.CPURequestMilli == 0 {
		spec.CPURequestMilli = defaultCPURequestMilli
	}
	if spec.CPULimitMilli == 0 {
		spec.CPULimitMilli = defaultCPULimitMilli
	}
	if spec.MemRequestBytes == 0 {
		spec.MemRequestBytes = defaultMemRequestBytes
	}
	if spec.MemLimitBytes == 0 {
		spec.MemLimitBytes = defaultMemLimitBytes
	}
	if spec.Deadline == 0 {
		spec.Deadline = defaultWorkerDeadline
	}
	if spec.TTLAfterFinish == 0 {
		spec.TTLAfterFinish = defaultWorkerTTL
	}
	return spec
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
