package rag

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conversly/whatsapp-faq-bot/internal/types"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

type stubSource struct {
	byTenant map[string][]types.FAQEntry
	err      error
	calls    []string
}

func (s *stubSource) ListActiveFAQs(_ context.Context, tenantID string) ([]types.FAQEntry, error) {
	s.calls = append(s.calls, tenantID)
	if s.err != nil {
		return nil, s.err
	}
	return s.byTenant[tenantID], nil
}

func unit(x float32) []float32 {
	return []float32{x, float32(math.Sqrt(1 - float64(x)*float64(x)))}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.6, CosineSimilarity([]float32{1, 0}, []float32{3, 4}))
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 1}, []float32{0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestBestMatchThresholdIsInclusive(t *testing.T) {
	entries := []types.FAQEntry{{ID: 1, Answer: "a", Embedding: []float32{3, 4}}}
	query := []float32{1, 0}

	hit := BestMatch(query, entries, 0.6)
	require.True(t, hit.Hit())
	assert.Equal(t, 0.6, hit.Score)

	miss := BestMatch(query, entries, math.Nextafter(0.6, 1))
	assert.False(t, miss.Hit())
	assert.Equal(t, 0.6, miss.Score)
}

func TestBestMatchIsDeterministicAndFirstWinsTies(t *testing.T) {
	entries := []types.FAQEntry{
		{ID: 9, Answer: "later", Embedding: []float32{1, 0}},
		{ID: 2, Answer: "earlier", Embedding: []float32{2, 0}},
		{ID: 5, Answer: "other", Embedding: []float32{0, 1}},
	}

	first := BestMatch([]float32{1, 0}, entries, 0.5)
	for i := 0; i < 20; i++ {
		again := BestMatch([]float32{1, 0}, entries, 0.5)
		assert.Equal(t, first.Entry.ID, again.Entry.ID)
		assert.Equal(t, first.Score, again.Score)
	}
	assert.Equal(t, int64(2), first.Entry.ID)
}

func TestBestMatchSkipsUnusableEmbeddings(t *testing.T) {
	entries := []types.FAQEntry{
		{ID: 1, Answer: "null", Embedding: nil},
		{ID: 2, Answer: "short", Embedding: []float32{1}},
		{ID: 3, Answer: "nan", Embedding: []float32{float32(math.NaN()), 1}},
		{ID: 4, Answer: "zero", Embedding: []float32{0, 0}},
		{ID: 5, Answer: "good", Embedding: unit(0.9)},
	}

	m := BestMatch([]float32{1, 0}, entries, 0.75)
	require.True(t, m.Hit())
	assert.Equal(t, int64(5), m.Entry.ID)
}

func TestFindBestMatchEndToEndScores(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"what time are you open": {1, 0},
		"tell me a joke":         unit(0.2),
	}}
	source := &stubSource{byTenant: map[string][]types.FAQEntry{
		"T1": {{ID: 1, TenantID: "T1", Question: "What are your hours?", Answer: "9-5 Mon-Fri", Embedding: unit(0.81)}},
	}}
	m := NewMatcher(emb, source, MatcherConfig{Threshold: 0.75}, nil)

	hit := m.FindBestMatch(context.Background(), "what time are you open", "T1")
	require.True(t, hit.Hit())
	assert.Equal(t, "9-5 Mon-Fri", hit.Entry.Answer)
	assert.InDelta(t, 0.81, hit.Score, 1e-6)

	miss := m.FindBestMatch(context.Background(), "tell me a joke", "T1")
	assert.False(t, miss.Hit())
	assert.InDelta(t, 0.2, miss.Score, 1e-6)
}

func TestFindBestMatchTenantIsolation(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"refund policy": {1, 0}}}
	source := &stubSource{byTenant: map[string][]types.FAQEntry{
		"A": {{ID: 1, TenantID: "A", Answer: "A answer", Embedding: unit(0.5)}},
		"B": {{ID: 2, TenantID: "B", Answer: "B answer", Embedding: []float32{1, 0}}},
	}}
	m := NewMatcher(emb, source, MatcherConfig{Threshold: 0.75}, nil)

	match := m.FindBestMatch(context.Background(), "refund policy", "A")
	assert.False(t, match.Hit())
	assert.InDelta(t, 0.5, match.Score, 1e-6)
	assert.Equal(t, []string{"A"}, source.calls)
}

func TestFindBestMatchSharedPoolIsOptIn(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"hours": {1, 0}}}
	source := &stubSource{byTenant: map[string][]types.FAQEntry{
		SharedPoolTenantID: {{ID: 7, Answer: "shared", Embedding: []float32{1, 0}}},
	}}

	strict := NewMatcher(emb, source, MatcherConfig{Threshold: 0.75}, nil)
	assert.False(t, strict.FindBestMatch(context.Background(), "hours", "empty").Hit())

	shared := NewMatcher(emb, source, MatcherConfig{Threshold: 0.75, SharedPool: true}, nil)
	match := shared.FindBestMatch(context.Background(), "hours", "empty")
	require.True(t, match.Hit())
	assert.Equal(t, "shared", match.Entry.Answer)
}

func TestFindBestMatchEmbeddingFailure(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("upstream down")}
	source := &stubSource{}
	m := NewMatcher(emb, source, MatcherConfig{Threshold: 0.75}, nil)

	match := m.FindBestMatch(context.Background(), "anything", "T1")
	assert.False(t, match.Hit())
	assert.Equal(t, 0.0, match.Score)
	assert.Empty(t, source.calls)
}

func TestFindBestMatchZeroQueryVector(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {0, 0}}}
	source := &stubSource{byTenant: map[string][]types.FAQEntry{
		"T1": {{ID: 1, Embedding: []float32{1, 0}}},
	}}
	m := NewMatcher(emb, source, MatcherConfig{Threshold: 0}, nil)

	match := m.FindBestMatch(context.Background(), "q", "T1")
	assert.Equal(t, 0.0, match.Score)
}
