// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package controller implements the Worker Lifecycle Controller (C5):
// a periodic scan loop that spawns at most one worker per file with
// pending tasks, and reaps workers whose files have gone idle.
package controller

import (
	"context"
	"time"
)

// Queue is the external task queue the controller polls for files with
// pending work. internal/queue's implementations satisfy this.
type Queue interface {
	PendingFileIDs(ctx context.Context) ([]string, error)
}

// WorkerSpec describes the container the scheduler should create for a
// file, mirroring the env/resource contract in spec.md §6.
type WorkerSpec struct {
	FileID          string
	Image           string
	Env             map[string]string
	CPURequestMilli int64
	CPULimitMilli   int64
	MemRequestBytes int64
	MemLimitBytes   int64
	Deadline        time.Duration
	TTLAfterFinish  time.Duration
}

// ContainerScheduler is the seam to the thing that actually runs
// worker containers (Docker locally, a real orchestrator in
// production). The label selector / "non-terminating, active>0" query
// spec.md describes is folded into ActiveFileIDs.
type ContainerScheduler interface {
	// ActiveFileIDs returns the file ids of every non-terminating
	// worker with active > 0, keyed the same way a label selector over
	// app=worker,managed-by=quadratic-cloud-controller would be.
	ActiveFileIDs(ctx context.Context) (map[string]bool, error)
	Spawn(ctx context.Context, spec WorkerSpec) (workerID string, err error)
	MarkForDeletion(ctx context.Context, workerID string) error
}

// WorkerHandle is one entry in the controller's active-worker set.
type WorkerHandle struct {
	FileID   string
	WorkerID string
	HealthAt time.Time
}

// WorkerInitData is what GetWorkerInitData(file_id) returns to a
// freshly spawned worker (spec.md §6).
type WorkerInitData struct {
	TeamID             string
	Email              string
	SequenceNumber     int64
	PresignedURL       string
	ThumbnailUploadURL string
	ThumbnailKey       string
	Timezone           string
}
