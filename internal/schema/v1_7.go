// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package schema

// migrateV1_7 upgrades a v1.7 document to v1.8, the step that
// corresponds to v1_7_1/sheet_formatting_upgrade.rs: it adds an empty
// sheet-wide "formats" map when the document has none. Existing
// per-cell formatting is carried forward unchanged; it is not
// consolidated into run-length Contiguous2D blocks.
func migrateV1_7(doc Document) (Document, error) {
	body := cloneBody(doc.Body)
	if _, ok := body["formats"]; !ok {
		body["formats"] = map[string]any{}
	}
	return Document{Version: V1_8, Body: body}, nil
}
