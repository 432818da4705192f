// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// TestGetCellsMultiplexerResolvesValue exercises spec.md §4.6 step 3's
// single-goroutine get_cells path end to end: a runner's GetCellsFunc
// submits onto the bounded channel, Run's loop resolves it against the
// sheet, and the reply carries the cell's current display value.
func TestGetCellsMultiplexerResolvesValue(t *testing.T) {
	sheet := grid.NewSheet("s1", "Sheet1")
	sheet.SetCellValue(grid.Position{X: 1, Y: 1}, grid.NewNumberFromInt(1))

	mux := NewGetCellsMultiplexer(sheet)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mux.Run(ctx) }()

	get := mux.GetCells()
	v, _, err := get("A1")
	require.NoError(t, err)
	assert.True(t, v.Single.Equal(grid.NewNumberFromInt(1)))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestGetCellsMultiplexerRejectsRangeReference(t *testing.T) {
	sheet := grid.NewSheet("s1", "Sheet1")
	mux := NewGetCellsMultiplexer(sheet)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Run(ctx)

	_, _, err := mux.GetCells()("A1:B4")
	assert.Error(t, err)
}

func TestParseA1(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"A1", false},
		{"bc12", false},
		{"1A", true},
		{"A1:B2", true},
	}
	for _, tt := range tests {
		_, err := parseA1(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
	}
}
