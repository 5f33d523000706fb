package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/observability"
)

// HealthCheck reports connectivity of the durable store and the cache tier.
// Either dependency being down degrades the status to unhealthy with 503.
func HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	statuses := map[string]string{
		"mongodb": "healthy",
		"redis":   "healthy",
	}
	healthy := true

	if err := config.MongoDB.Client().Ping(ctx, nil); err != nil {
		observability.Logger().Warn("mongodb health check failed", zap.Error(err))
		statuses["mongodb"] = "unhealthy"
		healthy = false
	}

	if err := config.Redis.Ping(ctx).Err(); err != nil {
		observability.Logger().Warn("redis health check failed", zap.Error(err))
		statuses["redis"] = "unhealthy"
		healthy = false
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  statuses,
	}
	if !healthy {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
