// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package queue

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

func newTestSQLiteQueue(t *testing.T) *SQLiteQueue {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	q, err := NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("new sqlite queue: %v", err)
	}
	return q
}

func exerciseQueue(t *testing.T, q Queue) {
	t.Helper()
	ctx := context.Background()

	ops := []engine.Operation{
		engine.SetCellValueOp(grid.SheetPos{}, grid.CellValue{Kind: grid.KindText, Text: "hello"}),
	}

	if _, err := q.Enqueue(ctx, "file-a", "team-1", "edit cell", ops); err != nil {
		t.Fatalf("enqueue file-a: %v", err)
	}
	if _, err := q.Enqueue(ctx, "file-b", "team-1", "edit cell", ops); err != nil {
		t.Fatalf("enqueue file-b: %v", err)
	}

	pending, err := q.PendingFileIDs(ctx)
	if err != nil {
		t.Fatalf("pending file ids: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("want 2 pending files, got %d (%v)", len(pending), pending)
	}

	task, ok, err := q.Dequeue(ctx, "file-a")
	if err != nil {
		t.Fatalf("dequeue file-a: %v", err)
	}
	if !ok {
		t.Fatal("expected a pending task for file-a")
	}
	if task.FileID != "file-a" || task.TransactionName != "edit cell" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if len(task.Operations) != 1 || task.Operations[0].Value.Text != "hello" {
		t.Fatalf("operations not round-tripped: %+v", task.Operations)
	}

	if err := q.Ack(ctx, task.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	pending, err = q.PendingFileIDs(ctx)
	if err != nil {
		t.Fatalf("pending file ids after ack: %v", err)
	}
	if len(pending) != 1 || pending[0] != "file-b" {
		t.Fatalf("want only file-b pending, got %v", pending)
	}

	_, ok, err = q.Dequeue(ctx, "file-a")
	if err != nil {
		t.Fatalf("dequeue drained file-a: %v", err)
	}
	if ok {
		t.Fatal("file-a should have nothing left to dequeue")
	}
}

func TestMemQueue(t *testing.T) {
	exerciseQueue(t, NewMemQueue())
}

func TestSQLiteQueue(t *testing.T) {
	exerciseQueue(t, newTestSQLiteQueue(t))
}

func TestCodecRoundTrip(t *testing.T) {
	task := Task{
		ID:              "t1",
		FileID:          "file-a",
		TeamID:          "team-1",
		TransactionName: "edit cell",
		Operations: []engine.Operation{
			engine.SetCellValueOp(
				grid.SheetPos{Position: grid.Position{X: 1, Y: 1}},
				grid.CellValue{Kind: grid.KindNumber, Number: decimal.NewFromInt(42)},
			),
		},
	}
	encoded, err := encodeTask(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeTask(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.FileID != task.FileID || !decoded.Operations[0].Value.Number.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}
