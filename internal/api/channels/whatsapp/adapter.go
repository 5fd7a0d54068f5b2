package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/api/channels"
	"github.com/Conversly/whatsapp-faq-bot/internal/observability/metrics"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

const (
	DefaultGraphURL = "https://graph.facebook.com/v21.0"
	ChannelName     = "whatsapp"
)

var sendTracer = otel.Tracer("faqbot.internal.whatsapp")

// WhatsAppMessageRequest represents the Meta API request body
type WhatsAppMessageRequest struct {
	MessagingProduct string                  `json:"messaging_product"`
	RecipientType    string                  `json:"recipient_type"`
	To               string                  `json:"to"`
	Context          *WhatsAppMessageContext `json:"context,omitempty"`
	Type             string                  `json:"type"`
	Text             *WhatsAppTextContent    `json:"text,omitempty"`
}

// WhatsAppMessageContext for replying to a specific message
type WhatsAppMessageContext struct {
	MessageID string `json:"message_id"`
}

// WhatsAppTextContent for text messages
type WhatsAppTextContent struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// WhatsAppMessageResponse from Meta API
type WhatsAppMessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Adapter implements channels.Sender on the WhatsApp Cloud API.
type Adapter struct {
	graphURL     string
	defaultToken string
	client       *http.Client
	metrics      *metrics.BotMetrics
}

// NewAdapter creates a Cloud API sender. defaultToken is used for tenants
// without their own token.
func NewAdapter(graphURL, defaultToken string, m *metrics.BotMetrics) *Adapter {
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	return &Adapter{
		graphURL:     strings.TrimRight(graphURL, "/"),
		defaultToken: defaultToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: m,
	}
}

func (a *Adapter) Channel() string {
	return ChannelName
}

// SendText sends a text message via the Meta Graph API
func (a *Adapter) SendText(ctx context.Context, msg channels.OutboundMessage) (string, error) {
	ctx, span := sendTracer.Start(ctx, "whatsapp.send")
	span.SetAttributes(attribute.String("phone_number_id", msg.PhoneNumberID))
	defer span.End()

	id, err := a.send(ctx, msg)
	if err != nil {
		a.metrics.ObserveOutbound("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		utils.Zlog.Error("Failed to send WhatsApp message",
			zap.String("phone_number_id", msg.PhoneNumberID),
			zap.String("to", utils.MaskPhone(msg.To)),
			zap.Error(err))
		return "", err
	}

	a.metrics.ObserveOutbound("sent")
	utils.Zlog.Debug("WhatsApp message sent",
		zap.String("phone_number_id", msg.PhoneNumberID),
		zap.String("to", utils.MaskPhone(msg.To)),
		zap.String("message_id", id))
	return id, nil
}

func (a *Adapter) send(ctx context.Context, msg channels.OutboundMessage) (string, error) {
	token := msg.AccessToken
	if token == "" {
		token = a.defaultToken
	}
	if token == "" {
		return "", channels.ErrMissingCredential
	}
	if msg.PhoneNumberID == "" || msg.To == "" {
		return "", fmt.Errorf("phone number id and recipient are required")
	}

	reqBody := &WhatsAppMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.To,
		Type:             "text",
		Text: &WhatsAppTextContent{
			PreviewURL: false,
			Body:       msg.Body,
		},
	}
	if msg.ReplyTo != "" {
		reqBody.Context = &WhatsAppMessageContext{MessageID: msg.ReplyTo}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", a.graphURL, msg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("meta API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var msgResp WhatsAppMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(msgResp.Messages) == 0 {
		return "", fmt.Errorf("no message ID returned from Meta API")
	}
	return msgResp.Messages[0].ID, nil
}
