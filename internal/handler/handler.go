// Package handler implements §4.K, the external interface shim: it maps
// orchestrator operations and event types onto the wire representation of
// §6 over HTTP, using labstack/echo in the Register(e *echo.Echo) idiom
// shown by privacy-service's audit_logs_handler.go, and a shared
// errResponse helper in the style of handlers.go.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/audit"
	"github.com/arc-self/wikipii-scan/internal/checkpoint"
	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/eventstore"
	"github.com/arc-self/wikipii-scan/internal/orchestrator"
	"github.com/arc-self/wikipii-scan/internal/source"
	"github.com/arc-self/wikipii-scan/internal/subscriber"
)

// Handler wires the scan orchestrator, checkpoint manager, event store,
// fan-out, and audit recorder onto the HTTP/SSE surface described in §6.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	checkpoints  *checkpoint.Manager
	events       *eventstore.Store
	fanout       *subscriber.FanOut
	audit        *audit.Recorder
	source       source.ContentSource
	logger       *zap.Logger
}

// New constructs a Handler.
func New(
	o *orchestrator.Orchestrator,
	cp *checkpoint.Manager,
	ev *eventstore.Store,
	fo *subscriber.FanOut,
	rec *audit.Recorder,
	src source.ContentSource,
	logger *zap.Logger,
) *Handler {
	return &Handler{orchestrator: o, checkpoints: cp, events: ev, fanout: fo, audit: rec, source: src, logger: logger}
}

// Register mounts the scan routes under /api/v1/scans and the health check
// at /healthz.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/api/v1/scans")
	g.POST("", h.StartAllSpaces)
	g.POST("/:scanId/spaces/:spaceKey", h.StartSpace)
	g.GET("/:scanId/stream", h.StreamScan)
	g.POST("/:scanId/resume", h.ResumeScan)
	g.POST("/:scanId/pause", h.PauseScan)
	g.GET("/:scanId", h.GetScan)
	g.GET("/:scanId/pages/:pageId/reveal", h.Reveal)
	e.GET("/healthz", h.Health)
}

func errResponse(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// StartAllSpaces starts a fresh scan across every space and streams its
// events back as SSE on the same connection.
func (h *Handler) StartAllSpaces(c echo.Context) error {
	scanId := domain.ScanId(uuid.NewString())
	return h.driveAndStream(c, scanId, func(ctx context.Context) error {
		return h.orchestrator.StreamAllSpaces(ctx, scanId)
	})
}

// StartSpace starts a fresh scan of one space and streams it.
func (h *Handler) StartSpace(c echo.Context) error {
	scanId := domain.ScanId(c.Param("scanId"))
	space := domain.SpaceKey(c.Param("spaceKey"))
	return h.driveAndStream(c, scanId, func(ctx context.Context) error {
		return h.orchestrator.StreamSpace(ctx, scanId, space)
	})
}

// ResumeScan resumes a previously interrupted scan across all spaces.
func (h *Handler) ResumeScan(c echo.Context) error {
	scanId := domain.ScanId(c.Param("scanId"))
	return h.driveAndStream(c, scanId, func(ctx context.Context) error {
		return h.orchestrator.ResumeAllSpaces(ctx, scanId)
	})
}

// StreamScan subscribes to a scan already in flight without driving it, for
// clients that reconnect mid-scan. It relays only events published after
// the subscription starts; earlier events are not replayed from the store.
func (h *Handler) StreamScan(c echo.Context) error {
	scanId := domain.ScanId(c.Param("scanId"))
	return h.relay(c, scanId)
}

// driveAndStream runs driver on a context detached from the request (so
// the scan survives a client disconnect, per §5's fire-and-forget
// semantics) while this request relays events live via the fan-out.
func (h *Handler) driveAndStream(c echo.Context, scanId domain.ScanId, driver func(context.Context) error) error {
	bg := context.Background()

	go func() {
		if err := driver(bg); err != nil {
			h.logger.Error("scan driver failed", zap.String("scan_id", string(scanId)), zap.Error(err))
		}
	}()

	return h.relay(c, scanId)
}

// relay subscribes to the live fan-out for scanId and writes each event as
// an SSE frame until the subscriber channel closes or the client goes away.
func (h *Handler) relay(c echo.Context, scanId domain.ScanId) error {
	ctx := c.Request().Context()

	events, err := h.fanout.Subscribe(ctx, scanId)
	if err != nil {
		return errResponse(c, http.StatusInternalServerError, "failed to subscribe to scan")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	for event := range events {
		if err := writeSSE(resp, event); err != nil {
			return nil // client disconnected
		}
		resp.Flush()
	}
	return nil
}

func writeSSE(w http.ResponseWriter, event domain.ScanEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
	return err
}

// PauseScan transitions every non-terminal checkpoint of a scan to Paused.
func (h *Handler) PauseScan(c echo.Context) error {
	scanId := domain.ScanId(c.Param("scanId"))
	if err := h.checkpoints.PauseScan(c.Request().Context(), scanId); err != nil {
		return errResponse(c, http.StatusInternalServerError, "failed to pause scan")
	}
	return c.NoContent(http.StatusNoContent)
}

// GetScan returns authoritative per-space status from checkpoints.
func (h *Handler) GetScan(c echo.Context) error {
	scanId := domain.ScanId(c.Param("scanId"))
	checkpoints, err := h.checkpoints.FindByScan(c.Request().Context(), scanId)
	if err != nil {
		return errResponse(c, http.StatusInternalServerError, "failed to load scan")
	}
	return c.JSON(http.StatusOK, checkpoints)
}

// Reveal returns decrypted sensitive values for a page within a scan,
// gated by the reveal policy and audit-logged (§4.J).
func (h *Handler) Reveal(c echo.Context) error {
	if err := h.audit.Authorize(); err != nil {
		return errResponse(c, http.StatusForbidden, "secret reveal disabled")
	}
	scanId := domain.ScanId(c.Param("scanId"))
	pageId := domain.PageId(c.Param("pageId"))
	results, err := h.events.ListItemEventsDecrypted(c.Request().Context(), scanId, pageId, "api.reveal")
	if err != nil {
		return errResponse(c, http.StatusInternalServerError, "failed to reveal scan results")
	}
	return c.JSON(http.StatusOK, results)
}

// Health reports connectivity to the content source (§6 Health).
func (h *Handler) Health(c echo.Context) error {
	if err := h.source.Ping(c.Request().Context()); err != nil {
		return errResponse(c, http.StatusServiceUnavailable, "content source unreachable")
	}
	return c.NoContent(http.StatusOK)
}
