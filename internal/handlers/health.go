package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

const pingTTL = 5 * time.Minute

// HealthHandler reports liveness of the server and its storage backends
type HealthHandler struct {
	pgdb     *gorm.DB
	mgClient *mongo.Client
	cache    repositories.CacheRepository
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(pgdb *gorm.DB, mgClient *mongo.Client, cache repositories.CacheRepository) *HealthHandler {
	return &HealthHandler{pgdb: pgdb, mgClient: mgClient, cache: cache}
}

// HealthCheck pings both databases and stamps the shared cache so the last
// healthy moment survives a crash.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	status := http.StatusOK

	postgres := "up"
	if sqlDB, err := h.pgdb.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		postgres = "down"
		status = http.StatusServiceUnavailable
	}

	mongoStatus := "up"
	if err := h.mgClient.Ping(ctx, nil); err != nil {
		mongoStatus = "down"
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusOK {
		if err := h.cache.Upsert(ctx, "ping:server", time.Now().UTC(), pingTTL); err != nil {
			// A failed stamp does not make the service unhealthy
			c.Logger().Warnf("health ping stamp failed: %v", err)
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	return c.JSON(status, echo.Map{
		"status":   overall,
		"service":  "wavechat-api",
		"postgres": postgres,
		"mongo":    mongoStatus,
	})
}
