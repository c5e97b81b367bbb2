package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nexa-labs/wavechat-backend/internal/ccu"
)

// MetricsHandler serves the admin concurrency dashboard
type MetricsHandler struct {
	aggregator *ccu.Aggregator
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(aggregator *ccu.Aggregator) *MetricsHandler {
	return &MetricsHandler{aggregator: aggregator}
}

// RegisterMetricsRoutes registers admin metrics routes
func (h *MetricsHandler) RegisterMetricsRoutes(g *echo.Group) {
	g.GET("/metrics/ccu", h.GetCCUMetrics)
}

// GetCCUMetrics returns the cached concurrency aggregates. The read path
// never hard-fails: storage problems surface as a zeroed "error" payload.
func (h *MetricsHandler) GetCCUMetrics(c echo.Context) error {
	dashboard := h.aggregator.GetMetrics(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": dashboard})
}
