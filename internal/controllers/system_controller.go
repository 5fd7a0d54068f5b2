package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conversly/whatsapp-faq-bot/internal/config"
)

const Version = "1.0.0"

type SystemController struct {
	cfg *config.Config
}

func NewSystemController(cfg *config.Config) *SystemController {
	return &SystemController{cfg: cfg}
}

// Status godoc
// @Summary Get system status
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/status [get]
func (s *SystemController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     s.cfg.ServiceName,
		"version":     Version,
		"environment": s.cfg.Environment,
		"hostname":    s.cfg.Hostname,
		"timestamp":   time.Now().UTC(),
	})
}

// Info godoc
// @Summary Get runtime configuration summary
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/info [get]
func (s *SystemController) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":              s.cfg.ServiceName,
		"version":              Version,
		"environment":          s.cfg.Environment,
		"hostname":             s.cfg.Hostname,
		"debug":                s.cfg.Debug,
		"log_level":            s.cfg.LogLevel,
		"model":                s.cfg.GeminiModel,
		"similarity_threshold": s.cfg.SimilarityThreshold,
		"shared_faq_pool":      s.cfg.SharedFAQPool,
		"rate_limit_interval":  s.cfg.RateLimitInterval.String(),
		"timestamp":            time.Now().UTC(),
	})
}
