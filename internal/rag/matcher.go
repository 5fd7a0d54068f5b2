package rag

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/embedder"
	"github.com/Conversly/whatsapp-faq-bot/internal/observability/metrics"
	"github.com/Conversly/whatsapp-faq-bot/internal/types"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// SharedPoolTenantID selects the FAQ entries that belong to no tenant.
const SharedPoolTenantID = ""

// FAQSource loads the active FAQ entries of a tenant.
type FAQSource interface {
	ListActiveFAQs(ctx context.Context, tenantID string) ([]types.FAQEntry, error)
}

// Match is the outcome of one lookup. Entry is nil when nothing reached the
// threshold; Score still carries the best similarity seen.
type Match struct {
	Entry *types.FAQEntry
	Score float64
}

// Hit reports whether an entry was accepted.
func (m Match) Hit() bool { return m.Entry != nil }

// Retriever finds the best FAQ entry for a query. The linear Matcher is the
// only implementation; an ANN index can satisfy the same contract.
type Retriever interface {
	FindBestMatch(ctx context.Context, query, tenantID string) Match
}

type MatcherConfig struct {
	Threshold float64
	// SharedPool makes tenants without FAQ entries fall back to the shared pool.
	SharedPool bool
}

type Matcher struct {
	embedder embedder.Embedder
	source   FAQSource
	cfg      MatcherConfig
	metrics  *metrics.BotMetrics
}

func NewMatcher(emb embedder.Embedder, source FAQSource, cfg MatcherConfig, m *metrics.BotMetrics) *Matcher {
	return &Matcher{
		embedder: emb,
		source:   source,
		cfg:      cfg,
		metrics:  m,
	}
}

// FindBestMatch embeds query and scans the tenant's FAQ entries. It never
// fails: embedding or loading problems produce an empty Match.
func (m *Matcher) FindBestMatch(ctx context.Context, query, tenantID string) Match {
	queryVec, err := m.embedder.EmbedText(ctx, query)
	if err != nil {
		utils.Zlog.Warn("Query embedding failed, skipping FAQ match",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return Match{}
	}
	if !validVector(queryVec) {
		utils.Zlog.Warn("Query embedding is not usable, skipping FAQ match",
			zap.String("tenant_id", tenantID))
		return Match{}
	}

	entries, err := m.loadEntries(ctx, tenantID)
	if err != nil {
		utils.Zlog.Warn("Failed to load FAQ entries",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return Match{}
	}

	match := BestMatch(queryVec, entries, m.cfg.Threshold)
	m.metrics.ObserveFAQScore(match.Score)

	if match.Hit() {
		utils.Zlog.Info("FAQ matched",
			zap.String("tenant_id", tenantID),
			zap.Int64("faq_id", match.Entry.ID),
			zap.Float64("score", match.Score))
	} else {
		utils.Zlog.Debug("No FAQ above threshold",
			zap.String("tenant_id", tenantID),
			zap.Float64("best_score", match.Score),
			zap.Float64("threshold", m.cfg.Threshold))
	}
	return match
}

func (m *Matcher) loadEntries(ctx context.Context, tenantID string) ([]types.FAQEntry, error) {
	entries, err := m.source.ListActiveFAQs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 && m.cfg.SharedPool && tenantID != SharedPoolTenantID {
		utils.Zlog.Debug("Tenant has no FAQs, using shared pool", zap.String("tenant_id", tenantID))
		return m.source.ListActiveFAQs(ctx, SharedPoolTenantID)
	}
	return entries, nil
}

// BestMatch scores every usable entry against query. Entries are visited in
// ascending id order and the first one reaching the top score wins. The
// result carries an entry only when its score is >= threshold.
func BestMatch(query []float32, entries []types.FAQEntry, threshold float64) Match {
	ordered := make([]types.FAQEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var (
		best      *types.FAQEntry
		bestScore float64
	)
	for i := range ordered {
		entry := &ordered[i]
		if len(entry.Embedding) != len(query) || !validVector(entry.Embedding) {
			utils.Zlog.Warn("Skipping FAQ entry with unusable embedding",
				zap.Int64("faq_id", entry.ID),
				zap.Int("dims", len(entry.Embedding)),
				zap.Int("expected_dims", len(query)))
			continue
		}

		score := CosineSimilarity(query, entry.Embedding)
		if best == nil || score > bestScore {
			best = entry
			bestScore = score
		}
	}

	if best == nil {
		return Match{}
	}
	if bestScore >= threshold {
		return Match{Entry: best, Score: bestScore}
	}
	return Match{Score: bestScore}
}
