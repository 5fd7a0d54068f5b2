package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// MultiKeyChatModel wraps multiple Gemini chat models with round-robin key rotation
// This distributes API requests across multiple keys to avoid rate limits
type MultiKeyChatModel struct {
	models   []model.BaseChatModel
	keyIndex uint64 // atomic counter for round-robin selection
}

// NewMultiKeyChatModel creates a chat model that rotates between multiple API keys
func NewMultiKeyChatModel(ctx context.Context, apiKeys []string, modelName string, temperature *float32, maxTokens *int) (*MultiKeyChatModel, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}

	models := make([]model.BaseChatModel, len(apiKeys))

	for i, key := range apiKeys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client for key %d: %w", i+1, err)
		}

		chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       modelName,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model for key %d: %w", i+1, err)
		}

		models[i] = chatModel
	}

	utils.Zlog.Info("Created multi-key chat model with round-robin rotation",
		zap.Int("key_count", len(apiKeys)),
		zap.String("model", modelName))

	return &MultiKeyChatModel{models: models}, nil
}

// getNextModel returns the next model using round-robin selection
func (m *MultiKeyChatModel) getNextModel() model.BaseChatModel {
	if len(m.models) == 1 {
		return m.models[0]
	}
	idx := atomic.AddUint64(&m.keyIndex, 1)
	return m.models[idx%uint64(len(m.models))]
}

// Generate implements model.BaseChatModel
func (m *MultiKeyChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return m.getNextModel().Generate(ctx, input, opts...)
}

// Stream implements model.BaseChatModel
func (m *MultiKeyChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.getNextModel().Stream(ctx, input, opts...)
}

// ModelFactory builds a chat model for a model name.
type ModelFactory func(ctx context.Context, modelName string) (model.BaseChatModel, error)

// GeminiFactory returns a factory that builds multi-key Gemini models.
func GeminiFactory(apiKeys []string, temperature float32, maxTokens int) ModelFactory {
	return func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		return NewMultiKeyChatModel(ctx, apiKeys, modelName, &temperature, &maxTokens)
	}
}

// GeminiProvider implements Provider on top of eino chat models, one per
// model name, created on first use.
type GeminiProvider struct {
	factory      ModelFactory
	defaultModel string

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

func NewGeminiProvider(factory ModelFactory, defaultModel string) *GeminiProvider {
	return &GeminiProvider{
		factory:      factory,
		defaultModel: defaultModel,
		models:       make(map[string]model.BaseChatModel),
	}
}

func (p *GeminiProvider) chatModel(ctx context.Context, name string) (model.BaseChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cm, ok := p.models[name]; ok {
		return cm, nil
	}
	cm, err := p.factory(ctx, name)
	if err != nil {
		return nil, err
	}
	p.models[name] = cm
	return cm, nil
}

// Generate sends the system instruction followed by the chronological
// history and returns plain text or a *Failure.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	name := req.Model
	if name == "" {
		name = p.defaultModel
	}

	cm, err := p.chatModel(ctx, name)
	if err != nil {
		return "", &Failure{Reason: ReasonOther, Err: fmt.Errorf("failed to create chat model %s: %w", name, err)}
	}

	return Normalize(cm.Generate(ctx, ToSchemaMessages(req)))
}

// ToSchemaMessages converts a request into the eino message sequence.
func ToSchemaMessages(req Request) []*schema.Message {
	out := make([]*schema.Message, 0, len(req.Messages)+1)
	if req.SystemInstruction != "" {
		out = append(out, schema.SystemMessage(req.SystemInstruction))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
