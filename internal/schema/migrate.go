// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package schema

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// cloneBody makes a shallow copy of a document body so a migration
// step never mutates the document it was handed.
func cloneBody(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}
	return out
}

// MigrateAll drives the chain end-to-end over every sheet in docs,
// reporting a per-sheet progress meter to w — the cmd/quadctl migrate
// subcommand's implementation.
func MigrateAll(w io.Writer, docs []Document) ([]Document, error) {
	bar := progressbar.NewOptions(len(docs),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("migrating sheets"),
		progressbar.OptionShowCount(),
	)

	out := make([]Document, len(docs))
	for i, doc := range docs {
		migrated, err := Migrate(doc)
		if err != nil {
			return nil, fmt.Errorf("schema: sheet %d: %w", i, err)
		}
		out[i] = migrated
		_ = bar.Add(1)
	}
	return out, nil
}
