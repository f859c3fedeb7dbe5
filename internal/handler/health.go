// Package handler implements the core's HTTP surface: liveness/readiness
// probes alongside the Prometheus /metrics endpoint pkg/http always exposes.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"MarketSentry/internal/domain/repository"
	"MarketSentry/internal/pipeline"
)

// HealthHandler implements pkg/http.Handler, registering the liveness and
// readiness probes the process exposes alongside /metrics.
type HealthHandler struct {
	pipeline *pipeline.Pipeline
	hot      repository.HotStore
	cold     repository.ColdStore
}

// NewHealthHandler builds a handler over the running pipeline and stores.
func NewHealthHandler(p *pipeline.Pipeline, hot repository.HotStore, cold repository.ColdStore) *HealthHandler {
	return &HealthHandler{pipeline: p, hot: hot, cold: cold}
}

// RegisterRoutes implements pkg/http.Handler.
func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.liveness)
	e.GET("/ready", h.readiness)
}

// liveness reports the process is up and, when a pipeline is attached,
// includes the detector's active alert count. It never depends on external
// stores, so a degraded Redis or ClickHouse never flips this probe.
func (h *HealthHandler) liveness(c echo.Context) error {
	body := map[string]any{"status": "ok"}
	if h.pipeline != nil {
		body["active_alerts"] = h.pipeline.ActiveAlertCount()
	}
	return c.JSON(http.StatusOK, body)
}

// readiness reports whether the storage layer is keeping up. It returns 503
// when the hot store is degraded; the cold store fallback queue depth is
// reported in the body but does not fail the probe.
func (h *HealthHandler) readiness(c echo.Context) error {
	degraded := h.hot != nil && h.hot.Degraded()
	queueDepth := 0
	if h.cold != nil {
		queueDepth = h.cold.QueueDepth()
	}

	status := http.StatusOK
	if degraded {
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, map[string]any{
		"hot_store_degraded":     degraded,
		"cold_store_queue_depth": queueDepth,
	})
}
