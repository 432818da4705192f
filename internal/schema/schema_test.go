// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package schema

import (
	"bytes"
	"testing"
)

func TestMigrateFullChain(t *testing.T) {
	doc := Document{
		Version: V1_7,
		Body: map[string]any{
			"borders":              "thin",
			"code_cell_references": []any{"Sheet1!A1"},
			"code_runs": []any{
				map[string]any{"language": "Formula", "code": "=A1+1"},
			},
		},
	}

	migrated, err := Migrate(doc)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if migrated.Version != Current {
		t.Fatalf("want version %s, got %s", Current, migrated.Version)
	}
	if _, ok := migrated.Body["formats"]; !ok {
		t.Fatal("v1.8 formats field missing after migration")
	}
	if _, ok := migrated.Body["a1_selections"]; !ok {
		t.Fatal("v1.11 a1_selections rename missing after migration")
	}
	if _, ok := migrated.Body["code_cell_references"]; ok {
		t.Fatal("old code_cell_references key should have been renamed away")
	}
	runs, ok := migrated.Body["code_runs"].([]any)
	if !ok || len(runs) != 1 {
		t.Fatalf("code_runs not carried through: %+v", migrated.Body["code_runs"])
	}
	run := runs[0].(map[string]any)
	if _, ok := run["formula_ast"]; !ok {
		t.Fatal("v1.12 formula_ast field missing on code run after migration")
	}
}

func TestMigrateAlreadyCurrent(t *testing.T) {
	doc := Document{Version: Current, Body: map[string]any{}}
	migrated, err := Migrate(doc)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if migrated.Version != Current {
		t.Fatalf("want unchanged version %s, got %s", Current, migrated.Version)
	}
}

func TestMigrateUnknownVersion(t *testing.T) {
	_, err := Migrate(Document{Version: "0.9", Body: map[string]any{}})
	if err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestMigrateAllReportsProgress(t *testing.T) {
	var buf bytes.Buffer
	docs := []Document{
		{Version: V1_7, Body: map[string]any{}},
		{Version: V1_10, Body: map[string]any{}},
	}
	out, err := MigrateAll(&buf, docs)
	if err != nil {
		t.Fatalf("migrate all: %v", err)
	}
	for i, d := range out {
		if d.Version != Current {
			t.Fatalf("doc %d: want version %s, got %s", i, Current, d.Version)
		}
	}
}
