// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Command controller is the Worker Lifecycle Controller (C5): it runs
// the periodic scan-and-spawn loop over the task queue and exposes the
// worker-facing init/ready/heartbeat/shutdown HTTP surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/quadratic-labs/qd-engine/internal/config"
	"github.com/quadratic-labs/qd-engine/internal/controller"
	"github.com/quadratic-labs/qd-engine/internal/filelock"
	"github.com/quadratic-labs/qd-engine/internal/queue"
	"github.com/quadratic-labs/qd-engine/internal/store"
	"github.com/quadratic-labs/qd-engine/internal/telemetry"
)

func main() {
	log := telemetry.NewLoggerFromEnv("controller")

	cfg, err := config.LoadControllerConfig()
	if err != nil {
		log.Error("load controller config", "error", err)
		os.Exit(1)
	}

	q, err := openQueue(cfg)
	if err != nil {
		log.Error("open queue", "error", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	scheduler, err := controller.NewDockerScheduler()
	if err != nil {
		log.Error("connect docker scheduler", "error", err)
		os.Exit(1)
	}

	locks := controller.NewCreateLocks(filelock.NewMemoryRegistry())

	ctrl := controller.NewController(q, scheduler, locks, log)
	ctrl.Image = cfg.WorkerImage
	if cfg.MaxWorkers > 0 {
		ctrl.SpawnLimiter = rate.NewLimiter(rate.Every(200*time.Millisecond), cfg.MaxWorkers)
	}
	if cfg.WorkerSpecTemplatePath != "" {
		tmpl, err := controller.LoadWorkerSpecTemplate(cfg.WorkerSpecTemplatePath)
		if err != nil {
			log.Error("load worker spec template", "error", err)
			os.Exit(1)
		}
		ctrl.SpecTemplate = tmpl
	}

	tokens := controller.NewTokenService([]byte(cfg.TokenSecret), cfg.TokenTTL)

	initData := func(fileID string) (controller.WorkerInitData, error) {
		rec, err := st.FileByID(context.Background(), fileID)
		if err != nil {
			return controller.WorkerInitData{}, fmt.Errorf("controller: resolve init data for %s: %w", fileID, err)
		}
		token, err := tokens.Mint(fileID)
		if err != nil {
			return controller.WorkerInitData{}, fmt.Errorf("controller: mint worker token for %s: %w", fileID, err)
		}
		return controller.WorkerInitData{
			TeamID:             rec.TeamID,
			SequenceNumber:     rec.SequenceNumber,
			PresignedURL:       fmt.Sprintf("%s/%s?token=%s", cfg.ObjectBaseURL, fileID, token),
			ThumbnailUploadURL: fmt.Sprintf("%s/%s/thumbnail?token=%s", cfg.ObjectBaseURL, fileID, token),
			ThumbnailKey:       rec.ThumbnailKey,
			Timezone:           "UTC",
		}, nil
	}

	api := controller.NewAPI(ctrl, tokens, initData)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: api.Router(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("controller http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.DurableScan {
		host, err := controller.NewHost(ctx, cfg.TemporalTask, ctrl)
		if err != nil {
			log.Error("start temporal scan host", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := host.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
		log.Info("durable scan loop started", "task_queue", cfg.TemporalTask)
	} else {
		go func() {
			if err := ctrl.Run(ctx, cfg.ScanInterval); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
		log.Info("scan loop started", "interval", cfg.ScanInterval)
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("controller service failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", "error", err)
	}
}

func openQueue(cfg *config.ControllerConfig) (controller.Queue, error) {
	switch cfg.QueueBackend {
	case "memory":
		return queue.NewMemQueue(), nil
	case "sqlite", "":
		db, err := queue.OpenSQLite(cfg.QueueDSN)
		if err != nil {
			return nil, err
		}
		return queue.NewSQLiteQueue(db)
	default:
		return nil, fmt.Errorf("config: unknown queue backend %q", cfg.QueueBackend)
	}
}

type closableStore interface {
	FileByID(ctx context.Context, fileID string) (store.FileRecord, error)
	Close() error
}

func openStore(cfg *config.ControllerConfig) (closableStore, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.StoreDSN)
	case "postgres", "":
		return store.NewPGStore(context.Background(), store.DefaultPGConfig(cfg.StoreDSN))
	default:
		return nil, fmt.Errorf("config: unknown store backend %q", cfg.StoreBackend)
	}
}
