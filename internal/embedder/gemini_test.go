package embedder

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type stubModels struct {
	values   []float32
	err      error
	delay    time.Duration
	calls    int
	lastTask string
	lastDims int32
}

func (s *stubModels) EmbedContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	s.calls++
	s.lastTask = cfg.TaskType
	if cfg.OutputDimensionality != nil {
		s.lastDims = *cfg.OutputDimensionality
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: s.values}},
	}, nil
}

func TestEmbedTextNormalizes(t *testing.T) {
	stub := &stubModels{values: []float32{3, 4, 0}}
	e := newGeminiEmbedder([]contentEmbedder{stub}, Config{Dimensions: 3})

	vec, err := e.EmbedText(context.Background(), "what time are you open")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
	assert.Equal(t, TaskRetrievalQuery, stub.lastTask)
	assert.Equal(t, int32(3), stub.lastDims)
}

func TestEmbedDocumentUsesDocumentTask(t *testing.T) {
	stub := &stubModels{values: []float32{1, 0}}
	e := newGeminiEmbedder([]contentEmbedder{stub}, Config{Dimensions: 2})

	_, err := e.EmbedDocument(context.Background(), "What are your hours?")
	require.NoError(t, err)
	assert.Equal(t, TaskRetrievalDocument, stub.lastTask)
}

func TestEmbedTextRejectsBlankInput(t *testing.T) {
	stub := &stubModels{values: []float32{1}}
	e := newGeminiEmbedder([]contentEmbedder{stub}, Config{Dimensions: 1})

	_, err := e.EmbedText(context.Background(), "   \n\t")
	require.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, stub.calls)
}

func TestEmbedTextUpstreamError(t *testing.T) {
	stub := &stubModels{err: errors.New("boom")}
	e := newGeminiEmbedder([]contentEmbedder{stub}, Config{Dimensions: 2})

	_, err := e.EmbedText(context.Background(), "hi")
	require.Error(t, err)
}

func TestEmbedTextTimeout(t *testing.T) {
	stub := &stubModels{values: []float32{1, 0}, delay: time.Second}
	e := newGeminiEmbedder([]contentEmbedder{stub}, Config{Dimensions: 2, Timeout: 10 * time.Millisecond})

	_, err := e.EmbedText(context.Background(), "hi")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbedTextDimensionMismatch(t *testing.T) {
	stub := &stubModels{values: []float32{1, 0, 0}}
	e := newGeminiEmbedder([]contentEmbedder{stub}, Config{Dimensions: 768})

	_, err := e.EmbedText(context.Background(), "hi")
	require.Error(t, err)
}

func TestRoundRobinAcrossKeys(t *testing.T) {
	a := &stubModels{values: []float32{1}}
	b := &stubModels{values: []float32{1}}
	e := newGeminiEmbedder([]contentEmbedder{a, b}, Config{Dimensions: 1})

	for i := 0; i < 4; i++ {
		_, err := e.EmbedText(context.Background(), "hi")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, b.calls)
}

func TestNormalizeZeroVector(t *testing.T) {
	vec := normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, vec)
	assert.False(t, math.IsNaN(float64(vec[0])))
}
