// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// Renderer is the C7 thumbnail pipeline's seam into the worker
// runtime: render the current sheet into a PNG the shutdown sequence
// can upload.
type Renderer interface {
	Render(ctx context.Context, sheet *grid.Sheet) ([]byte, error)
}

// Uploader puts rendered bytes at a presigned URL the controller handed
// the worker at startup.
type Uploader interface {
	Upload(ctx context.Context, presignedURL string, data []byte) error
}

// ShutdownCoordinator implements spec.md §4.6 step 5 / §4.8's worker
// shutdown protocol: finish any in-flight transaction, render and
// upload a final thumbnail, notify the controller, then let the
// process exit.
type ShutdownCoordinator struct {
	FileID             string
	ControllerURL      string
	ThumbnailUploadURL string
	ThumbnailKey       string
	EphemeralToken     string

	Renderer Renderer
	Uploader Uploader

	client *resty.Client
}

// NewShutdownCoordinator wires a coordinator against one worker's
// fixed identity (file id, controller base URL, thumbnail target),
// matching the worker's init payload from spec.md §6.
func NewShutdownCoordinator(fileID, controllerURL, thumbnailUploadURL, thumbnailKey, ephemeralToken string, r Renderer, u Uploader) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		FileID:             fileID,
		ControllerURL:      controllerURL,
		ThumbnailUploadURL: thumbnailUploadURL,
		ThumbnailKey:       thumbnailKey,
		EphemeralToken:     ephemeralToken,
		Renderer:           r,
		Uploader:           u,
		client:             resty.New().SetTimeout(30 * time.Second).SetBaseURL(controllerURL),
	}
}

// Shutdown runs the full sequence. worker may be nil (e.g. a worker
// asked to shut down before it ever received a transaction), in which
// case the thumbnail render is skipped but the controller is still
// notified, so a crash-looping worker can't wedge the controller's
// active-worker accounting.
func (c *ShutdownCoordinator) Shutdown(ctx context.Context, w *Worker, mux *GetCellsMultiplexer, reason string) error {
	if w != nil && w.JS != nil {
		_ = w.JS.Shutdown(ctx)
	}

	var thumbErr error
	if w != nil && c.Renderer != nil {
		sheets := w.GC.Grid.Sheets()
		if len(sheets) > 0 {
			png, err := c.Renderer.Render(ctx, sheets[0])
			if err != nil {
				thumbErr = err
			} else if c.Uploader != nil {
				if err := c.Uploader.Upload(ctx, c.ThumbnailUploadURL, png); err != nil {
					thumbErr = err
				}
			}
		}
	}
	if thumbErr != nil {
		reason = fmt.Sprintf("%s (thumbnail failed: %s)", reason, thumbErr)
	}

	return c.notifyController(ctx, reason)
}

func (c *ShutdownCoordinator) notifyController(ctx context.Context, reason string) error {
	body := map[string]string{
		"reason":        reason,
		"thumbnail_key": c.ThumbnailKey,
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.EphemeralToken).
		SetBody(body).
		Post(fmt.Sprintf("/workers/%s/shutdown", c.FileID))
	if err != nil {
		return fmt.Errorf("runtime: notify controller shutdown: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("runtime: controller shutdown returned %s", resp.Status())
	}
	return nil
}
