package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
)

// SubscriptionHandler handles push subscription registration requests
type SubscriptionHandler struct {
	subscriptionRepository repositories.SubscriptionRepository
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subscriptionRepo repositories.SubscriptionRepository) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionRepository: subscriptionRepo}
}

// RegisterSubscriptionRoutes registers push subscription routes
func (h *SubscriptionHandler) RegisterSubscriptionRoutes(g *echo.Group) {
	g.POST("/notifications/subscribe", h.StoreSubscription)
	g.DELETE("/notifications/subscribe", h.RemoveSubscription)
}

// StoreSubscription registers a web push endpoint for the authenticated
// user. The write is an idempotent upsert keyed by endpoint: re-registering
// the same endpoint refreshes the keys, and registration under a different
// user re-parents the record (last writer wins).
func (h *SubscriptionHandler) StoreSubscription(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.StoreSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	subscription := &models.PushSubscription{
		UserID:         currentUserID,
		Endpoint:       req.Endpoint,
		ExpirationTime: req.ExpirationTime,
		Keys: models.SubscriptionKeys{
			P256dh: req.Keys.P256dh,
			Auth:   req.Keys.Auth,
		},
	}

	if err := h.subscriptionRepository.Upsert(c.Request().Context(), subscription); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"subscribed": true}})
}

// RemoveSubscription unregisters a push endpoint. Only the owning user may
// remove it; removing an unknown endpoint succeeds silently.
func (h *SubscriptionHandler) RemoveSubscription(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.RemoveSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	existing, err := h.subscriptionRepository.GetByEndpoint(c.Request().Context(), req.Endpoint)
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"removed": false}})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Subscription belongs to another user")
	}

	if err := h.subscriptionRepository.DeleteByEndpoint(c.Request().Context(), req.Endpoint); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"removed": true}})
}
