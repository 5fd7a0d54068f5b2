package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// Pinger is anything with a liveness check: the Postgres client, the redis
// client adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthController struct {
	db    Pinger
	redis Pinger
}

// NewHealthController builds the health endpoints. redis may be nil when the
// process runs without it.
func NewHealthController(db Pinger, redis Pinger) *HealthController {
	return &HealthController{db: db, redis: redis}
}

func (h *HealthController) check(ctx context.Context) (gin.H, bool) {
	deps := gin.H{"database": "up"}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		utils.Zlog.Error("Database health check failed", zap.Error(err))
		deps["database"] = "down"
		healthy = false
	}
	if h.redis == nil {
		deps["redis"] = "disabled"
	} else if err := h.redis.Ping(ctx); err != nil {
		utils.Zlog.Error("Redis health check failed", zap.Error(err))
		deps["redis"] = "down"
		healthy = false
	} else {
		deps["redis"] = "up"
	}
	return deps, healthy
}

// HealthCheck godoc
// @Summary Check application health
// @Description Check if the application, database and redis are healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	body, healthy := h.check(ctx)
	body["timestamp"] = time.Now().UTC()
	if !healthy {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "healthy"
	c.JSON(http.StatusOK, body)
}

// Liveness godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/live [get]
func (h *HealthController) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// Readiness godoc
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/ready [get]
func (h *HealthController) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	body, healthy := h.check(ctx)
	body["timestamp"] = time.Now().UTC()
	if !healthy {
		body["status"] = "not ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	c.JSON(http.StatusOK, body)
}
