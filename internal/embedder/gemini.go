package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// ErrEmptyText is returned for empty or whitespace-only input.
var ErrEmptyText = errors.New("text cannot be empty")

// Task types understood by the Gemini embedding endpoint.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// contentEmbedder is satisfied by *genai.Models.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Config struct {
	Model      string
	Dimensions int
	Timeout    time.Duration
	TaskType   string
}

// GeminiEmbedder handles embedding generation with rotating API keys
type GeminiEmbedder struct {
	clients     []contentEmbedder
	cfg         Config
	keyIndex    uint64        // atomic counter for round-robin key selection
	rateLimiter chan struct{} // caps concurrent upstream calls
}

// NewGeminiEmbedder creates one genai client per API key.
func NewGeminiEmbedder(ctx context.Context, keys []string, cfg Config) (*GeminiEmbedder, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}

	clients := make([]contentEmbedder, 0, len(keys))
	for i, key := range keys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client for key %d: %w", i+1, err)
		}
		clients = append(clients, client.Models)
	}

	return newGeminiEmbedder(clients, cfg), nil
}

func newGeminiEmbedder(clients []contentEmbedder, cfg Config) *GeminiEmbedder {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TaskType == "" {
		cfg.TaskType = TaskRetrievalQuery
	}
	maxConcurrentRequests := 5

	return &GeminiEmbedder{
		clients:     clients,
		cfg:         cfg,
		rateLimiter: make(chan struct{}, maxConcurrentRequests),
	}
}

// Dimensions reports the vector length every successful call returns.
func (g *GeminiEmbedder) Dimensions() int {
	return g.cfg.Dimensions
}

// getNextClient returns the next client using round-robin selection
func (g *GeminiEmbedder) getNextClient() contentEmbedder {
	if len(g.clients) == 1 {
		return g.clients[0]
	}
	idx := atomic.AddUint64(&g.keyIndex, 1)
	return g.clients[idx%uint64(len(g.clients))]
}

// normalize normalizes a vector to unit length
func normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}

	norm := 0.0
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}

// EmbedText embeds a query with the configured task type.
func (g *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return g.embed(ctx, text, g.cfg.TaskType)
}

// EmbedDocument embeds text that will be stored and searched against, such
// as an FAQ question.
func (g *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return g.embed(ctx, text, TaskRetrievalDocument)
}

func (g *GeminiEmbedder) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	select {
	case g.rateLimiter <- struct{}{}:
		defer func() { <-g.rateLimiter }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	dims := int32(g.cfg.Dimensions)
	resp, err := g.getNextClient().EmbedContent(ctx, g.cfg.Model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dims,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			utils.Zlog.Warn("Embedding call timed out", zap.Duration("timeout", g.cfg.Timeout))
		}
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embeddings returned from API")
	}

	values := resp.Embeddings[0].Values
	if len(values) != g.cfg.Dimensions {
		return nil, fmt.Errorf("expected %d dimensions, got %d", g.cfg.Dimensions, len(values))
	}

	return normalize(values), nil
}
