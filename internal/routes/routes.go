package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Conversly/whatsapp-faq-bot/internal/api/admin"
	"github.com/Conversly/whatsapp-faq-bot/internal/api/channels/whatsapp"
	"github.com/Conversly/whatsapp-faq-bot/internal/config"
	"github.com/Conversly/whatsapp-faq-bot/internal/controllers"
	"github.com/Conversly/whatsapp-faq-bot/internal/middleware"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// Deps carries the wired components the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	DB       controllers.Pinger
	Redis    controllers.Pinger
	WhatsApp *whatsapp.Controller
	Admin    *admin.Service
	Metrics  http.Handler
}

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	// Apply global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	SetupHealthRoutes(router, deps.DB, deps.Redis, deps.Config)
	whatsapp.RegisterRoutes(router, deps.WhatsApp)

	if deps.Admin != nil && deps.Config.AdminAPIKey != "" {
		limiter := middleware.NewIPRateLimiter(deps.Config.AdminRateLimitPerSec, 10)
		admin.RegisterRoutes(router, deps.Admin,
			limiter.Middleware(),
			middleware.AdminAuth(deps.Config.AdminAPIKey))
	} else {
		utils.Zlog.Warn("ADMIN_API_KEY not set, admin API disabled")
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	Setup404Handler(router)
}
