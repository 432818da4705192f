// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runners

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// ConnectionKind names the backing datastore a connection query runs
// against.
type ConnectionKind string

const (
	ConnectionPostgres  ConnectionKind = "postgres"
	ConnectionMySQL     ConnectionKind = "mysql"
	ConnectionMSSQL     ConnectionKind = "mssql"
	ConnectionSnowflake ConnectionKind = "snowflake"
	ConnectionBigQuery  ConnectionKind = "bigquery"
)

// connectionQueryRequest mirrors the body the connection service
// expects: the code cell's body, templated with cell references
// already resolved, plus enough identity to route and authorize it.
type connectionQueryRequest struct {
	Kind    ConnectionKind `json:"kind"`
	ID      string         `json:"id"`
	TeamID  string         `json:"team_id"`
	SheetID string         `json:"sheet_id"`
	Query   string         `json:"query"`
}

type connectionQueryResponse struct {
	Rows  [][]string `json:"rows"`
	Error string     `json:"error,omitempty"`
}

// ConnectionRunner sends a code cell's body, as a templated query, to
// the external connection service and turns the row set it returns
// into a grid value array. Per the no-credential rule, the service URL
// and team_id/connection_id are bound into the runner at construction
// time, never read from the cell body itself.
type ConnectionRunner struct {
	client     *resty.Client
	serviceURL string
	connKind   ConnectionKind
	connID     string
	teamID     string
	sheetID    string
}

// NewConnectionRunner builds a ConnectionRunner bound to one
// connection service endpoint and one (kind, id, team_id, sheet_id)
// tuple, matching a single worker's fixed identity for its lifetime.
func NewConnectionRunner(serviceURL string, kind ConnectionKind, connID, teamID, sheetID string) *ConnectionRunner {
	return &ConnectionRunner{
		client:     resty.New().SetTimeout(30 * time.Second).SetBaseURL(serviceURL),
		serviceURL: serviceURL,
		connKind:   kind,
		connID:     connID,
		teamID:     teamID,
		sheetID:    sheetID,
	}
}

func (r *ConnectionRunner) Language() grid.Language { return grid.LanguageConnection }

func (r *ConnectionRunner) Run(ctx context.Context, req engine.RunRequest) (engine.DispatchOutcome, error) {
	templated, accessed, err := resolveCellReferences(req.Code, req.GetCells)
	if err != nil {
		return syncErrorOutcome(req, err.Error()), nil
	}

	body := connectionQueryRequest{
		Kind:    r.connKind,
		ID:      r.connID,
		TeamID:  r.teamID,
		SheetID: r.sheetID,
		Query:   templated,
	}

	var out connectionQueryResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/query")
	if err != nil {
		return syncErrorOutcome(req, fmt.Sprintf("connection service unreachable: %s", err)), nil
	}
	if resp.IsError() {
		return syncErrorOutcome(req, fmt.Sprintf("connection service returned %s", resp.Status())), nil
	}
	if out.Error != "" {
		return syncErrorOutcome(req, out.Error), nil
	}

	run := &grid.CodeRun{
		Language:      grid.LanguageConnection,
		Code:          req.Code,
		CellsAccessed: accessed,
		Value:         rowsToValue(out.Rows),
		LastModified:  time.Now(),
	}
	return engine.DispatchOutcome{Run: run}, nil
}

// rowsToValue lays query rows out as a 2D array anchored at the code
// cell, one grid row per result row, matching a data table's output
// shape (§2.3).
func rowsToValue(rows [][]string) grid.Value {
	if len(rows) == 0 {
		return grid.Value{Single: grid.CellValue{Kind: grid.KindBlank}}
	}
	arr := make([][]grid.CellValue, len(rows))
	for i, row := range rows {
		cols := make([]grid.CellValue, len(row))
		for j, cell := range row {
			cols[j] = grid.NewText(cell)
		}
		arr[i] = cols
	}
	return grid.Value{Array: arr}
}
