// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package schema

// migrateV1_11 upgrades a v1.11 document to v1.12, the current
// version: each code run gains an optional cached formula_ast
// alongside its code string, matching v1_12/schema.rs's CodeRunSchema
// ("CodeRun schema with optional formula AST caching") — older runs
// simply don't carry a cached AST until next recomputed.
func migrateV1_11(doc Document) (Document, error) {
	body := cloneBody(doc.Body)
	if runs, ok := body["code_runs"].([]any); ok {
		upgraded := make([]any, len(runs))
		for i, r := range runs {
			run, ok := r.(map[string]any)
			if !ok {
				upgraded[i] = r
				continue
			}
			run = cloneBody(run)
			if _, ok := run["formula_ast"]; !ok {
				run["formula_ast"] = nil
			}
			upgraded[i] = run
		}
		body["code_runs"] = upgraded
	}
	return Document{Version: V1_12, Body: body}, nil
}
