// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package controller

import (
	"fmt"
	"time"

	"github.com/quadratic-labs/qd-engine/internal/filelock"
)

// createLockTTL bounds how long a scan can hold a file's create lock;
// short, since spec.md §4.5 step 4 says the lock is released
// immediately after a successful submission, not held for the
// scheduler's list API to catch up.
const createLockTTL = 30 * time.Second

// CreateLocks serializes concurrent scans trying to spawn a worker for
// the same file id, implementing spec.md's worker_create_lock[file_id]
// on top of the shared exclusive-lock registry.
type CreateLocks struct {
	registry filelock.LockRegistry
}

// NewCreateLocks wraps an existing lock registry as the controller's
// per-file create-lock.
func NewCreateLocks(registry filelock.LockRegistry) *CreateLocks {
	return &CreateLocks{registry: registry}
}

// TryAcquire attempts to take the create lock for fileID under
// holder's name (the scanning goroutine's identity). A conflict (lock
// already held) is reported via ok=false, not an error.
func (l *CreateLocks) TryAcquire(fileID, holder string) (ok bool, err error) {
	res, err := l.registry.Acquire(filelock.LockRequest{
		Path:      fileID,
		Holder:    holder,
		Exclusive: true,
		TTL:       createLockTTL,
	})
	if err != nil {
		if _, isConflict := err.(*filelock.ConflictError); isConflict {
			return false, nil
		}
		return false, fmt.Errorf("controller: acquire create lock for %s: %w", fileID, err)
	}
	return res.Granted, nil
}

// Release gives up the create lock immediately after a spawn attempt
// completes (success or failure), per spec.md's "release immediately
// after submission" rule.
func (l *CreateLocks) Release(fileID, holder string) {
	_ = l.registry.Release(fileID, holder)
}
