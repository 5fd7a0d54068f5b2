package whatsapp

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// RegisterRoutes registers the WhatsApp webhook endpoints. Meta sends GET for
// verification and POST for deliveries.
func RegisterRoutes(router gin.IRouter, ctrl *Controller) {
	router.GET("/webhook", ctrl.VerifyWebhook)
	router.POST("/webhook", ctrl.Webhook)

	whatsapp := router.Group("/whatsapp")
	{
		whatsapp.GET("/webhook", ctrl.VerifyWebhook)
		whatsapp.POST("/webhook", ctrl.Webhook)
	}

	utils.Zlog.Info("WhatsApp routes registered",
		zap.String("verify_endpoint", "/webhook [GET]"),
		zap.String("webhook_endpoint", "/webhook [POST]"))
}
