package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/presence"
)

// PresenceHandler handles presence heartbeat and lookup requests
type PresenceHandler struct {
	tracker *presence.Tracker
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(tracker *presence.Tracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

// RegisterPresenceRoutes registers presence routes
func (h *PresenceHandler) RegisterPresenceRoutes(g *echo.Group) {
	g.POST("/presence/heartbeat", h.Heartbeat)
	g.GET("/presence", h.GetPresence)
}

// Heartbeat records a liveness signal for the authenticated user
func (h *PresenceHandler) Heartbeat(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.HeartbeatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	status := presence.ParseStatus(req.Status)
	if err := h.tracker.Heartbeat(c.Request().Context(), currentUserID, status); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"recorded": true}})
}

// GetPresence returns the presence view for a user. Without a user_id query
// parameter it returns the caller's own presence.
func (h *PresenceHandler) GetPresence(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	targetUserID := currentUserID
	if raw := c.QueryParam("user_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
		}
		targetUserID = uint(parsed)
	}

	info, err := h.tracker.GetPresence(c.Request().Context(), targetUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": info})
}
