package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/llm"
	"github.com/Conversly/whatsapp-faq-bot/internal/observability/metrics"
	"github.com/Conversly/whatsapp-faq-bot/internal/rag"
	"github.com/Conversly/whatsapp-faq-bot/internal/tenant"
	"github.com/Conversly/whatsapp-faq-bot/internal/types"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

var replyTracer = otel.Tracer("faqbot.internal.core")

// TenantResolver maps a phone number id to its tenant.
type TenantResolver interface {
	Resolve(ctx context.Context, phoneNumberID string) (*types.Tenant, error)
}

// HistoryStore returns the recent exchanges of one end-user, oldest first.
type HistoryStore interface {
	GetConversationHistory(ctx context.Context, tenantID, waID string, limit int) ([]types.ConversationMessage, error)
}

type GeneratorConfig struct {
	HistoryLimit    int
	HistoryMaxChars int
	MaxAttempts     int
	BaseDelay       time.Duration
	ModelTimeout    time.Duration
	DefaultModel    string
}

// Generator answers one inbound text. It reads tenants, FAQs and history but
// never writes; persisting the exchange is the caller's job.
type Generator struct {
	tenants  TenantResolver
	matcher  rag.Retriever
	history  HistoryStore
	provider llm.Provider
	cfg      GeneratorConfig
	metrics  *metrics.BotMetrics
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewGenerator(tenants TenantResolver, matcher rag.Retriever, history HistoryStore, provider llm.Provider, cfg GeneratorConfig, m *metrics.BotMetrics) *Generator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.HistoryMaxChars <= 0 {
		cfg.HistoryMaxChars = 6000
	}
	return &Generator{
		tenants:  tenants,
		matcher:  matcher,
		history:  history,
		provider: provider,
		cfg:      cfg,
		metrics:  m,
		sleep:    sleepCtx,
	}
}

// GenerateReply runs tenant resolution, FAQ matching and, on a miss, the
// model call. Every path returns a ReplyResult.
func (g *Generator) GenerateReply(ctx context.Context, userText, endUserID, phoneNumberID string) types.ReplyResult {
	start := time.Now()
	ctx, span := replyTracer.Start(ctx, "reply.generate", trace.WithAttributes(
		attribute.String("phone_number_id", phoneNumberID),
	))
	defer span.End()

	result := g.generate(ctx, strings.TrimSpace(userText), endUserID, phoneNumberID)

	span.SetAttributes(
		attribute.String("reply.source", string(result.Source)),
		attribute.Float64("faq.score", result.Score),
	)
	if result.Source == types.SourceError {
		span.SetStatus(codes.Error, "reply degraded")
	}
	g.metrics.ObserveReply(string(result.Source), time.Since(start).Seconds())
	return result
}

func (g *Generator) generate(ctx context.Context, text, endUserID, phoneNumberID string) types.ReplyResult {
	t, err := g.tenants.Resolve(ctx, phoneNumberID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			utils.Zlog.Warn("Reply requested for unconfigured number",
				zap.String("phone_number_id", phoneNumberID),
				zap.String("wa_id", utils.MaskPhone(endUserID)))
			return types.ReplyResult{Text: NotConfiguredText, Source: types.SourceError}
		}
		utils.Zlog.Error("Tenant resolution failed",
			zap.String("phone_number_id", phoneNumberID),
			zap.Error(err))
		return types.ReplyResult{Text: ApologyText, Source: types.SourceError}
	}

	if text == "" {
		return types.ReplyResult{Text: CannotRespondText, Source: types.SourceError, TenantID: t.ID}
	}

	match := g.matcher.FindBestMatch(ctx, text, t.ID)
	if match.Hit() {
		return types.ReplyResult{
			Text:            match.Entry.Answer,
			Source:          types.SourceFAQ,
			MatchedQuestion: match.Entry.Question,
			MatchedAnswer:   match.Entry.Answer,
			Score:           match.Score,
			TenantID:        t.ID,
		}
	}

	history, err := g.history.GetConversationHistory(ctx, t.ID, endUserID, g.cfg.HistoryLimit)
	if err != nil {
		utils.Zlog.Warn("Failed to load conversation history, continuing without it",
			zap.String("tenant_id", t.ID),
			zap.Error(err))
		history = nil
	}

	system := t.SystemInstruction
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemInstruction
	}
	modelName := t.ModelName
	if modelName == "" {
		modelName = g.cfg.DefaultModel
	}

	prompt := BuildPrompt(system, history, text, g.cfg.HistoryMaxChars)
	if prompt.Dropped > 0 {
		utils.Zlog.Debug("Trimmed conversation history to fit prompt budget",
			zap.String("tenant_id", t.ID),
			zap.Int("dropped", prompt.Dropped),
			zap.Int("kept", len(prompt.History)),
			zap.Int("chars", prompt.Chars))
	}

	reply, attempts, err := g.callModel(ctx, prompt.Request(modelName))
	result := types.ReplyResult{
		Score:    match.Score,
		TenantID: t.ID,
		Model:    modelName,
		Attempts: attempts,
	}
	if err != nil {
		f := llm.AsFailure(err)
		utils.Zlog.Warn("Model call failed",
			zap.String("tenant_id", t.ID),
			zap.String("reason", string(f.Reason)),
			zap.Int("attempts", attempts),
			zap.Error(f.Err))
		result.Source = types.SourceError
		if f.Reason == llm.ReasonEmpty {
			result.Text = CannotRespondText
		} else {
			result.Text = ApologyText
		}
		return result
	}

	result.Text = reply
	result.Source = types.SourceModel
	return result
}

// callModel retries rate-limit, server and timeout failures with doubling
// delays, up to MaxAttempts calls in total.
func (g *Generator) callModel(ctx context.Context, req llm.Request) (string, int, error) {
	ctx, span := replyTracer.Start(ctx, "reply.call_model", trace.WithAttributes(
		attribute.String("model", req.Model),
		attribute.Int("messages", len(req.Messages)),
	))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		text, err := g.attempt(ctx, req)
		if err == nil {
			g.metrics.ObserveModelAttempt("ok")
			span.SetAttributes(attribute.Int("attempts", attempt))
			return text, attempt, nil
		}

		f := llm.AsFailure(err)
		g.metrics.ObserveModelAttempt(string(f.Reason))
		lastErr = f

		if !f.Retryable() || attempt == g.cfg.MaxAttempts {
			span.SetAttributes(attribute.Int("attempts", attempt))
			span.RecordError(f)
			return "", attempt, f
		}

		backoff := g.cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
		utils.Zlog.Info("Retrying model call",
			zap.String("model", req.Model),
			zap.Int("attempt", attempt+1),
			zap.String("reason", string(f.Reason)),
			zap.Duration("backoff", backoff))
		if err := g.sleep(ctx, backoff); err != nil {
			span.RecordError(err)
			return "", attempt, &llm.Failure{Reason: llm.ReasonTimeout, Err: err}
		}
	}
	return "", g.cfg.MaxAttempts, lastErr
}

func (g *Generator) attempt(ctx context.Context, req llm.Request) (string, error) {
	if g.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.ModelTimeout)
		defer cancel()
	}
	return g.provider.Generate(ctx, req)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
