// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API exposes the controller's HTTP surface: the worker-facing
// GetWorkerInitData/WorkerReady/WorkerHeartbeat/WorkerShutdown
// messages from spec.md §6, plus /healthz and /metrics.
type API struct {
	controller *Controller
	tokens     *TokenService
	initData   func(fileID string) (WorkerInitData, error)
}

// NewAPI builds the controller's HTTP surface. initData resolves a
// file id to its init payload (team_id, presigned URLs, etc.) via
// whatever backing store the deployment uses.
func NewAPI(c *Controller, tokens *TokenService, initData func(fileID string) (WorkerInitData, error)) *API {
	return &API{controller: c, tokens: tokens, initData: initData}
}

// Router builds the chi mux for this API.
func (a *API) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", a.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/workers", func(r chi.Router) {
		r.Get("/{fileID}/init", a.handleGetWorkerInitData)
		r.Post("/{fileID}/ready", a.handleWorkerReady)
		r.Post("/{fileID}/heartbeat", a.handleWorkerHeartbeat)
		r.Post("/{fileID}/shutdown", a.handleWorkerShutdown)
	})

	return r
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"active_workers": a.controller.CountActiveWorkers(),
	})
}

func (a *API) handleGetWorkerInitData(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	data, err := a.initData(fileID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

type workerReadyRequest struct {
	EphemeralToken string `json:"ephemeral_token"`
}

func (a *API) handleWorkerReady(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	var req workerReadyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := a.tokens.Validate(req.EphemeralToken, fileID); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWorkerHeartbeat(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if h, ok := a.controller.active.Load(fileID); ok {
		h.HealthAt = time.Now()
		a.controller.active.Store(fileID, h)
	}
	w.WriteHeader(http.StatusNoContent)
}

type workerShutdownRequest struct {
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
	Reason       string `json:"reason"`
}

func (a *API) handleWorkerShutdown(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	var req workerShutdownRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	a.controller.active.Delete(fileID)

	w.WriteHeader(http.StatusNoContent)
}
