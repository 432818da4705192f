// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package config loads process configuration for the controller (C5)
// and worker (C6) services from the environment. The quadctl CLI does
// not use it: cmd/quadctl reads its own flags with environment overrides.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ControllerConfig configures the worker lifecycle controller (C5).
// Environment variables are read with the QUADRATIC_CONTROLLER_ prefix,
// e.g. QUADRATIC_CONTROLLER_HTTP_PORT.
type ControllerConfig struct {
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	ScanInterval  time.Duration `envconfig:"SCAN_INTERVAL" default:"10s"`
	MaxWorkers    int           `envconfig:"MAX_WORKERS" default:"0"` // 0 = unbounded
	WorkerImage   string        `envconfig:"WORKER_IMAGE" default:"quadratic-worker:latest"`
	TokenSecret   string        `envconfig:"TOKEN_SECRET" required:"true"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	TemporalTask  string        `envconfig:"TEMPORAL_TASK_QUEUE" default:"quadratic-controller"`
	QueueBackend  string        `envconfig:"QUEUE_BACKEND" default:"sqlite"`
	QueueDSN      string        `envconfig:"QUEUE_DSN" default:"file:controller-queue.db"`
	StoreBackend  string        `envconfig:"STORE_BACKEND" default:"postgres"`
	StoreDSN      string        `envconfig:"STORE_DSN" default:""`
	DurableScan   bool          `envconfig:"DURABLE_SCAN" default:"false"`
	ObjectBaseURL string        `envconfig:"OBJECT_BASE_URL" default:"http://localhost:9000/quadratic-files"`
	WorkerSpecTemplatePath string `envconfig:"WORKER_SPEC_TEMPLATE_PATH" default:""`
}

// LoadControllerConfig parses a ControllerConfig from the environment.
func LoadControllerConfig() (*ControllerConfig, error) {
	var cfg ControllerConfig
	if err := envconfig.Process("QUADRATIC_CONTROLLER", &cfg); err != nil {
		return nil, fmt.Errorf("config: load controller config: %w", err)
	}
	return &cfg, nil
}

// WorkerConfig configures one worker process (C6): the file it owns,
// where to fetch/upload it, and how to reach the controller.
type WorkerConfig struct {
	FileID              string        `envconfig:"FILE_ID" required:"true"`
	TeamID              string        `envconfig:"TEAM_ID" required:"true"`
	ControllerURL       string        `envconfig:"CONTROLLER_URL" required:"true"`
	EphemeralToken      string        `envconfig:"EPHEMERAL_TOKEN" required:"true"`
	PresignedURL        string        `envconfig:"PRESIGNED_URL" required:"true"`
	ThumbnailUploadURL  string        `envconfig:"THUMBNAIL_UPLOAD_URL"`
	ThumbnailKey        string        `envconfig:"THUMBNAIL_KEY"`
	ConnectionServiceURL string       `envconfig:"CONNECTION_SERVICE_URL"`
	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`
	PythonInterpreter   string        `envconfig:"PYTHON_INTERPRETER" default:"python3"`
	ActiveDeadline      time.Duration `envconfig:"ACTIVE_DEADLINE" default:"1h"`
	HeartbeatInterval   time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"15s"`
}

// LoadWorkerConfig parses a WorkerConfig from the environment.
func LoadWorkerConfig() (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envconfig.Process("QUADRATIC_WORKER", &cfg); err != nil {
		return nil, fmt.Errorf("config: load worker config: %w", err)
	}
	return &cfg, nil
}
