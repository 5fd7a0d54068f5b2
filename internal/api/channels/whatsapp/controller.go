package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

const maxWebhookBody = 1 << 20

// Controller handles WhatsApp webhook requests
type Controller struct {
	service     *Service
	verifyToken string
	appSecret   string
}

// NewController creates a new WhatsApp controller. An empty appSecret turns
// signature checking off.
func NewController(service *Service, verifyToken, appSecret string) *Controller {
	return &Controller{
		service:     service,
		verifyToken: verifyToken,
		appSecret:   appSecret,
	}
}

// VerifyWebhook handles Meta's subscription handshake
// GET /webhook
func (c *Controller) VerifyWebhook(ctx *gin.Context) {
	mode := ctx.Query("hub.mode")
	token := ctx.Query("hub.verify_token")
	challenge := ctx.Query("hub.challenge")

	if mode == "" || token == "" || challenge == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing_parameters"})
		return
	}

	if mode != "subscribe" || token != c.verifyToken {
		utils.Zlog.Warn("WhatsApp webhook verification failed",
			zap.String("mode", mode))
		ctx.JSON(http.StatusForbidden, gin.H{"error": "verification_failed"})
		return
	}

	utils.Zlog.Info("WhatsApp webhook verified")
	ctx.String(http.StatusOK, challenge)
}

// Webhook handles incoming WhatsApp webhook messages
// POST /webhook
func (c *Controller) Webhook(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		utils.Zlog.Error("Failed to read WhatsApp webhook body", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	if c.appSecret != "" {
		if err := VerifySignature(ctx.GetHeader(SignatureHeader), body, c.appSecret); err != nil {
			utils.Zlog.Warn("Rejected WhatsApp webhook with bad signature",
				zap.String("client_ip", ctx.ClientIP()))
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.Zlog.Error("Failed to parse WhatsApp webhook payload", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	// The reply must go out even if Meta drops the connection.
	processCtx := context.WithoutCancel(ctx.Request.Context())
	processed := c.service.HandlePayload(processCtx, &payload)

	ctx.JSON(http.StatusOK, gin.H{"status": "received", "processed": processed})
}
