// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		require.NoError(t, os.Unsetenv(k))
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadControllerConfigDefaults(t *testing.T) {
	clearEnv(t, "QUADRATIC_CONTROLLER_HTTP_PORT", "QUADRATIC_CONTROLLER_SCAN_INTERVAL", "QUADRATIC_CONTROLLER_TOKEN_SECRET")
	require.NoError(t, os.Setenv("QUADRATIC_CONTROLLER_TOKEN_SECRET", "test-secret"))

	cfg, err := LoadControllerConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.ScanInterval)
	assert.Equal(t, "quadratic-worker:latest", cfg.WorkerImage)
	assert.Equal(t, "test-secret", cfg.TokenSecret)
}

func TestLoadControllerConfigMissingRequired(t *testing.T) {
	clearEnv(t, "QUADRATIC_CONTROLLER_TOKEN_SECRET")

	_, err := LoadControllerConfig()
	require.Error(t, err)
}

func TestLoadWorkerConfigOverridesDefault(t *testing.T) {
	clearEnv(t,
		"QUADRATIC_WORKER_FILE_ID", "QUADRATIC_WORKER_TEAM_ID",
		"QUADRATIC_WORKER_CONTROLLER_URL", "QUADRATIC_WORKER_EPHEMERAL_TOKEN",
		"QUADRATIC_WORKER_PRESIGNED_URL", "QUADRATIC_WORKER_PYTHON_INTERPRETER",
	)
	require.NoError(t, os.Setenv("QUADRATIC_WORKER_FILE_ID", "file-123"))
	require.NoError(t, os.Setenv("QUADRATIC_WORKER_TEAM_ID", "team-1"))
	require.NoError(t, os.Setenv("QUADRATIC_WORKER_CONTROLLER_URL", "http://controller.local"))
	require.NoError(t, os.Setenv("QUADRATIC_WORKER_EPHEMERAL_TOKEN", "tok"))
	require.NoError(t, os.Setenv("QUADRATIC_WORKER_PRESIGNED_URL", "https://storage.local/file"))
	require.NoError(t, os.Setenv("QUADRATIC_WORKER_PYTHON_INTERPRETER", "python3.12"))

	cfg, err := LoadWorkerConfig()
	require.NoError(t, err)

	assert.Equal(t, "file-123", cfg.FileID)
	assert.Equal(t, "python3.12", cfg.PythonInterpreter)
	assert.Equal(t, time.Hour, cfg.ActiveDeadline)
}
