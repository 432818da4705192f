// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package schema models the on-disk file format's version history as a
// chain of migration steps, one file per version, matching
// quadratic-core's own grid/file/v1_12/schema.rs "read previous, write
// own" shape: each version's schema type-aliases whatever fields didn't
// change and only redeclares the ones that did.
package schema

import "fmt"

// Version identifies one on-disk schema generation.
type Version string

const (
	V1_7  Version = "1.7"
	V1_8  Version = "1.8"
	V1_9  Version = "1.9"
	V1_10 Version = "1.10"
	V1_11 Version = "1.11"
	V1_12 Version = "1.12"
)

// order is the migration chain, oldest first. Current is always the
// last entry.
var order = []Version{V1_7, V1_8, V1_9, V1_10, V1_11, V1_12}

// Current is the schema version new files are written at.
const Current = V1_12

// Document is the envelope every version's payload travels in: a
// version tag plus an opaque body, decoded/encoded by the version's own
// Migrate step. Payload shapes differ version to version (see
// v1_7.go..v1_11.go), so Document carries the body as a map rather than
// a single flat struct.
type Document struct {
	Version Version
	Body    map[string]any
}

// next returns the version immediately after v in the chain, or false
// at the end.
func next(v Version) (Version, bool) {
	for i, candidate := range order {
		if candidate == v && i+1 < len(order) {
			return order[i+1], true
		}
	}
	return "", false
}

// indexOf returns v's position in the chain, or -1 if v is unknown.
func indexOf(v Version) int {
	for i, candidate := range order {
		if candidate == v {
			return i
		}
	}
	return -1
}

// Step migrates a Document forward exactly one version.
type Step func(Document) (Document, error)

// steps maps each non-terminal version to the function that migrates a
// document at that version forward one step.
var steps = map[Version]Step{
	V1_7:  migrateV1_7,
	V1_8:  migrateV1_8,
	V1_9:  migrateV1_9,
	V1_10: migrateV1_10,
	V1_11: migrateV1_11,
}

// Migrate walks doc forward through every step until it reaches
// Current, applying one Step per version transition. A document
// already at Current is returned unchanged.
func Migrate(doc Document) (Document, error) {
	if indexOf(doc.Version) < 0 {
		return Document{}, fmt.Errorf("schema: unknown version %q", doc.Version)
	}
	for doc.Version != Current {
		step, ok := steps[doc.Version]
		if !ok {
			return Document{}, fmt.Errorf("schema: no migration step registered for version %q", doc.Version)
		}
		migrated, err := step(doc)
		if err != nil {
			return Document{}, fmt.Errorf("schema: migrate %s: %w", doc.Version, err)
		}
		want, _ := next(doc.Version)
		if migrated.Version != want {
			return Document{}, fmt.Errorf("schema: step for %s produced version %q, want %q", doc.Version, migrated.Version, want)
		}
		doc = migrated
	}
	return doc, nil
}
