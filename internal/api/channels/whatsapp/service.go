package whatsapp

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/api/channels"
	"github.com/Conversly/whatsapp-faq-bot/internal/core"
	"github.com/Conversly/whatsapp-faq-bot/internal/observability/metrics"
	"github.com/Conversly/whatsapp-faq-bot/internal/tenant"
	"github.com/Conversly/whatsapp-faq-bot/internal/throttle"
	"github.com/Conversly/whatsapp-faq-bot/internal/types"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

const (
	UnsupportedTypeText = "Unsupported message type"
	noButtonActionText  = "No action for button"
)

// ReplyGenerator produces the reply for one inbound text.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, userText, endUserID, phoneNumberID string) types.ReplyResult
}

// ExchangeRecorder persists an inbound message with its reply.
type ExchangeRecorder interface {
	Record(ctx context.Context, ex core.Exchange) error
}

// Service handles WhatsApp message processing and responses
type Service struct {
	generator ReplyGenerator
	tenants   core.TenantResolver
	limiter   throttle.Limiter
	deduper   throttle.Deduper
	sender    channels.Sender
	recorder  ExchangeRecorder
	metrics   *metrics.BotMetrics
}

type ServiceDeps struct {
	Generator ReplyGenerator
	Tenants   core.TenantResolver
	Limiter   throttle.Limiter
	Deduper   throttle.Deduper
	Sender    channels.Sender
	Recorder  ExchangeRecorder
	Metrics   *metrics.BotMetrics
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		generator: deps.Generator,
		tenants:   deps.Tenants,
		limiter:   deps.Limiter,
		deduper:   deps.Deduper,
		sender:    deps.Sender,
		recorder:  deps.Recorder,
		metrics:   deps.Metrics,
	}
}

// InboundMessage is one message lifted out of a webhook payload.
type InboundMessage struct {
	PhoneNumberID string
	From          string
	ProfileName   string
	Message       Message
}

// HandlePayload processes every message of a delivery in order. Status
// callbacks are logged and skipped. It never fails: each message resolves to
// a reply, a skip or a logged error.
func (s *Service) HandlePayload(ctx context.Context, payload *WebhookPayload) int {
	processed := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			for _, st := range value.Statuses {
				utils.Zlog.Debug("Ignoring status callback",
					zap.String("phone_number_id", value.Metadata.PhoneNumberID),
					zap.String("message_id", st.ID),
					zap.String("status", st.Status))
			}

			for _, msg := range value.Messages {
				in := InboundMessage{
					PhoneNumberID: value.Metadata.PhoneNumberID,
					From:          msg.From,
					ProfileName:   profileName(value.Contacts, msg.From),
					Message:       msg,
				}
				s.ProcessMessage(ctx, in)
				processed++
			}
		}
	}
	return processed
}

func profileName(contacts []Contact, waID string) string {
	for _, c := range contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	if len(contacts) > 0 {
		return contacts[0].Profile.Name
	}
	return ""
}

// ProcessMessage runs one inbound message to completion.
func (s *Service) ProcessMessage(ctx context.Context, in InboundMessage) {
	startTime := time.Now()
	msgType := in.Message.Type

	utils.Zlog.Info("Received WhatsApp message",
		zap.String("phone_number_id", in.PhoneNumberID),
		zap.String("wa_id", utils.MaskPhone(in.From)),
		zap.String("message_type", msgType),
		zap.String("message_id", in.Message.ID))

	if in.From == "" || in.PhoneNumberID == "" {
		utils.Zlog.Warn("Dropping message without sender or phone number id",
			zap.String("message_id", in.Message.ID))
		s.metrics.ObserveInbound(msgType, "invalid")
		return
	}

	if s.deduper != nil {
		first, err := s.deduper.FirstSeen(ctx, in.Message.ID)
		if err != nil {
			utils.Zlog.Warn("Duplicate check failed, processing anyway",
				zap.String("message_id", in.Message.ID),
				zap.Error(err))
		} else if !first {
			utils.Zlog.Info("Skipping redelivered message",
				zap.String("message_id", in.Message.ID))
			s.metrics.ObserveInbound(msgType, "duplicate")
			return
		}
	}

	var outcome string
	switch msgType {
	case TypeText:
		outcome = s.handleText(ctx, in)
	case TypeButton:
		outcome = s.handleButton(ctx, in)
	case TypeInteractive:
		outcome = s.handleInteractive(ctx, in)
	default:
		outcome = s.handleUnsupported(ctx, in)
	}

	s.metrics.ObserveInbound(msgType, outcome)
	utils.Zlog.Info("WhatsApp message processed",
		zap.String("phone_number_id", in.PhoneNumberID),
		zap.String("message_id", in.Message.ID),
		zap.String("outcome", outcome),
		zap.Int64("latency_ms", time.Since(startTime).Milliseconds()))
}

func (s *Service) handleText(ctx context.Context, in InboundMessage) string {
	var body string
	if in.Message.Text != nil {
		body = strings.TrimSpace(in.Message.Text.Body)
	}
	if body == "" {
		utils.Zlog.Debug("Ignoring empty text message",
			zap.String("message_id", in.Message.ID))
		return "empty"
	}

	if !s.allow(ctx, in) {
		t := s.lookupTenant(ctx, in.PhoneNumberID)
		s.send(ctx, in, t, core.PleaseWaitText)
		return "throttled"
	}

	reply := s.generator.GenerateReply(ctx, body, in.From, in.PhoneNumberID)
	t := s.lookupTenant(ctx, in.PhoneNumberID)
	s.send(ctx, in, t, reply.Text)

	tenantID := reply.TenantID
	if tenantID == "" && t != nil {
		tenantID = t.ID
	}
	s.record(ctx, core.Exchange{
		TenantID:    tenantID,
		WaID:        in.From,
		UserText:    body,
		Reply:       reply.Text,
		Source:      reply.Source,
		WaMessageID: in.Message.ID,
	})
	return string(reply.Source)
}

func (s *Service) allow(ctx context.Context, in InboundMessage) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(ctx, in.PhoneNumberID+":"+in.From)
	if err != nil {
		utils.Zlog.Warn("Rate limit check failed, allowing message",
			zap.String("wa_id", utils.MaskPhone(in.From)),
			zap.Error(err))
		return true
	}
	if !ok {
		utils.Zlog.Info("Rate limited end-user",
			zap.String("phone_number_id", in.PhoneNumberID),
			zap.String("wa_id", utils.MaskPhone(in.From)))
	}
	return ok
}

func (s *Service) handleButton(ctx context.Context, in InboundMessage) string {
	var payload string
	if in.Message.Button != nil {
		payload = strings.TrimSpace(in.Message.Button.Payload)
	}
	t := s.lookupTenant(ctx, in.PhoneNumberID)

	if payload == "" {
		s.record(ctx, s.echoExchange(t, in, noButtonActionText, ""))
		return "no_action"
	}

	reply := "You clicked: " + payload
	s.send(ctx, in, t, reply)
	s.record(ctx, s.echoExchange(t, in, "Button click: "+payload, reply))
	return "echo"
}

func (s *Service) handleInteractive(ctx context.Context, in InboundMessage) string {
	title := strings.TrimSpace(in.Message.Interactive.Title())
	t := s.lookupTenant(ctx, in.PhoneNumberID)

	if title == "" {
		s.record(ctx, s.echoExchange(t, in, noButtonActionText, ""))
		return "no_action"
	}

	reply := "You clicked: " + title
	s.send(ctx, in, t, reply)
	s.record(ctx, s.echoExchange(t, in, "Interactive reply: "+title, reply))
	return "echo"
}

func (s *Service) handleUnsupported(ctx context.Context, in InboundMessage) string {
	t := s.lookupTenant(ctx, in.PhoneNumberID)
	s.send(ctx, in, t, UnsupportedTypeText)
	s.record(ctx, s.echoExchange(t, in, "Unhandled type: "+in.Message.Type, UnsupportedTypeText))
	return "unsupported"
}

func (s *Service) echoExchange(t *types.Tenant, in InboundMessage, userText, reply string) core.Exchange {
	ex := core.Exchange{
		WaID:        in.From,
		UserText:    userText,
		Reply:       reply,
		Source:      types.SourceEcho,
		WaMessageID: in.Message.ID,
	}
	if t != nil {
		ex.TenantID = t.ID
	}
	return ex
}

// lookupTenant returns nil when the number has no tenant; callers fall back
// to the default credential.
func (s *Service) lookupTenant(ctx context.Context, phoneNumberID string) *types.Tenant {
	if s.tenants == nil {
		return nil
	}
	t, err := s.tenants.Resolve(ctx, phoneNumberID)
	if err != nil {
		if !errors.Is(err, tenant.ErrTenantNotFound) {
			utils.Zlog.Warn("Tenant lookup failed",
				zap.String("phone_number_id", phoneNumberID),
				zap.Error(err))
		}
		return nil
	}
	return t
}

func (s *Service) send(ctx context.Context, in InboundMessage, t *types.Tenant, body string) bool {
	if body == "" {
		return false
	}
	msg := channels.OutboundMessage{
		PhoneNumberID: in.PhoneNumberID,
		To:            in.From,
		Body:          body,
		ReplyTo:       in.Message.ID,
	}
	if t != nil {
		msg.AccessToken = t.APIToken
	}
	if _, err := s.sender.SendText(ctx, msg); err != nil {
		return false
	}
	return true
}

func (s *Service) record(ctx context.Context, ex core.Exchange) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, ex); err != nil {
		utils.Zlog.Error("Failed to save WhatsApp exchange",
			zap.String("tenant_id", ex.TenantID),
			zap.String("wa_id", utils.MaskPhone(ex.WaID)),
			zap.Error(err))
	}
}
