// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Command worker is the per-file worker process (C6): it fetches its
// file, binds the transaction engine and language runners to it, drains
// its task queue, and renders/uploads a thumbnail on shutdown.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quadratic-labs/qd-engine/internal/config"
	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
	"github.com/quadratic-labs/qd-engine/internal/queue"
	"github.com/quadratic-labs/qd-engine/internal/render"
	"github.com/quadratic-labs/qd-engine/internal/runners"
	"github.com/quadratic-labs/qd-engine/internal/runtime"
	"github.com/quadratic-labs/qd-engine/internal/schema"
	"github.com/quadratic-labs/qd-engine/internal/storage"
	"github.com/quadratic-labs/qd-engine/internal/telemetry"
)

func main() {
	log := telemetry.NewLoggerFromEnv("worker")

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Error("load worker config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fetcher := storage.NewHTTPStorage(5*time.Second, 3)
	snapshot, err := fetcher.Fetch(ctx, cfg.PresignedURL)
	if err != nil {
		log.Error("fetch file snapshot", "file_id", cfg.FileID, "error", err)
		os.Exit(1)
	}
	g, err := loadGrid(snapshot)
	if err != nil {
		log.Error("open file snapshot", "file_id", cfg.FileID, "error", err)
		os.Exit(1)
	}

	gc := engine.NewGridController(g)

	js, err := runtime.NewJSServer()
	if err != nil {
		log.Error("start javascript sub-server", "error", err)
		os.Exit(1)
	}

	registry := runners.NewRegistry()
	registry.Register(runners.NewFormulaRunner())
	registry.Register(runners.NewPythonRunner(cfg.PythonInterpreter))
	registry.Register(runners.NewJavaScriptRunner(js))
	if cfg.ConnectionServiceURL != "" {
		registry.Register(runners.NewConnectionRunner(cfg.ConnectionServiceURL, runners.ConnectionPostgres, "", cfg.TeamID, ""))
	}
	if cfg.OpenAIAPIKey != "" {
		registry.Register(runners.NewAIResearcherRunner(cfg.OpenAIAPIKey, "gpt-4o-mini"))
	}

	sheets := g.Sheets()
	mux := runtime.NewGetCellsMultiplexer(sheets[0])
	go func() {
		if err := mux.Run(ctx); err != nil {
			log.Error("get_cells multiplexer stopped", "error", err)
		}
	}()

	w := runtime.NewWorker(cfg.FileID, gc, registry, js, mux, log)

	uploader := storage.NewHTTPStorage(5*time.Second, 3)
	thumbRenderer := render.NewThumbnailRenderer()
	shutdownCoord := runtime.NewShutdownCoordinator(
		cfg.FileID, cfg.ControllerURL, cfg.ThumbnailUploadURL, cfg.ThumbnailKey, cfg.EphemeralToken,
		thumbRenderer, uploader,
	)

	q := queue.NewMemQueue()

	log.Info("worker ready", "file_id", cfg.FileID, "team_id", cfg.TeamID)

	deadline := time.NewTimer(cfg.ActiveDeadline)
	defer deadline.Stop()
	heartbeat := time.NewTicker(cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	reason := "idle timeout"
runLoop:
	for {
		select {
		case <-ctx.Done():
			reason = "signal"
			break runLoop
		case <-deadline.C:
			reason = "active deadline exceeded"
			break runLoop
		case <-heartbeat.C:
			log.Debug("heartbeat", "file_id", cfg.FileID)
		default:
			task, ok, err := q.Dequeue(ctx, cfg.FileID)
			if err != nil {
				log.Error("dequeue task", "error", err)
				continue
			}
			if !ok {
				time.Sleep(200 * time.Millisecond)
				continue
			}
			if _, err := w.RunTransaction(ctx, runtime.TransactionRequest{
				Operations:      task.Operations,
				TransactionName: task.TransactionName,
				TeamID:          task.TeamID,
			}); err != nil {
				log.Error("run transaction", "task_id", task.ID, "error", err)
				continue
			}
			if err := q.Ack(ctx, task.ID); err != nil {
				log.Error("ack task", "task_id", task.ID, "error", err)
			}
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := shutdownCoord.Shutdown(shutdownCtx, w, mux, reason); err != nil {
		log.Error("shutdown sequence", "file_id", cfg.FileID, "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped", "file_id", cfg.FileID, "reason", reason)
}

// loadGrid opens snapshot through the schema.Document bridge (§4.6 step
// 1): a brand-new file has no snapshot yet (empty body from storage),
// in which case the worker starts from one blank "Sheet1" exactly like
// a freshly created Quadratic file would. A non-empty snapshot is
// decoded as a versioned Document and migrated/imported via
// schema.Import, so the worker always resumes from the file's actual
// last-saved state instead of discarding it.
func loadGrid(snapshot []byte) (*grid.Grid, error) {
	if len(snapshot) == 0 {
		g := grid.NewGrid()
		return g, nil
	}
	var doc schema.Document
	if err := json.Unmarshal(snapshot, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	g, err := schema.Import(doc)
	if err != nil {
		return nil, fmt.Errorf("import document: %w", err)
	}
	return g, nil
}
