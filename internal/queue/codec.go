// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package queue

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeTask serializes a Task to the queue's wire format. msgpack
// rather than JSON: a Task's Operations slice can carry whole CodeRun
// results (output values, spill ranges), and the binary encoding keeps
// a multi-megabyte batch off the wire as text. github.com/vmihailenco/msgpack/v5
// is already a direct dependency for this reason alone.
func encodeTask(t Task) ([]byte, error) {
	b, err := msgpack.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("queue: encode task %s: %w", t.ID, err)
	}
	return b, nil
}

// decodeTask reverses encodeTask.
func decodeTask(b []byte) (Task, error) {
	var t Task
	if err := msgpack.Unmarshal(b, &t); err != nil {
		return Task{}, fmt.Errorf("queue: decode task: %w", err)
	}
	return t, nil
}
