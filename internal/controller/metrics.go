// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package controller

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the controller's own scan-loop counters, grounded on the
// mycelian-memory client package's promauto-registered metric style.
// One set is registered with the default registry on first use and
// shared by every Controller, so tests can spin up more than one
// controller without a registration panic.
type Metrics struct {
	ActiveWorkers prometheus.Gauge
	SpawnAttempts prometheus.Counter
	SpawnFailures prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics returns the controller metric set, registering it with the
// default registry on the first call; later calls return the same set.
func NewMetrics() *Metrics {
	defaultMetricsOnce.Do(func() { defaultMetrics = newMetrics() })
	return defaultMetrics
}

// newMetrics registers a fresh metric set with the default registry.
func newMetrics() *Metrics {
	return &Metrics{
		ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "quadratic_controller",
			Name:      "active_workers",
			Help:      "Workers the controller currently considers active.",
		}),
		SpawnAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "quadratic_controller",
			Name:      "spawn_attempts_total",
			Help:      "Worker spawn attempts submitted to the container scheduler.",
		}),
		SpawnFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "quadratic_controller",
			Name:      "spawn_failures_total",
			Help:      "Worker spawn attempts that returned an error.",
		}),
	}
}
