package loaders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/types"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// Embeddings are read through their text form so one undecodable vector
// only drops its own row instead of aborting the result set.
const faqColumns = `id, COALESCE(tenant_id, ''), question, answer,
       COALESCE(embedding::text, ''), active, created_at, updated_at`

func scanFAQ(row pgx.Row) (*types.FAQEntry, string, error) {
	var (
		f   types.FAQEntry
		raw string
	)
	err := row.Scan(&f.ID, &f.TenantID, &f.Question, &f.Answer, &raw, &f.Active, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, "", err
	}
	return &f, raw, nil
}

// decodeEmbedding parses the pgvector text form. An empty string is a NULL
// embedding and yields nil without error.
func decodeEmbedding(raw string) ([]float32, error) {
	if raw == "" {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Scan(raw); err != nil {
		return nil, err
	}
	return v.Slice(), nil
}

// ListActiveFAQs returns the active FAQ entries of a tenant ordered by id.
// An empty tenantID selects the shared pool. Rows whose embedding cannot be
// decoded are logged and returned without an embedding.
func (c *PostgresClient) ListActiveFAQs(ctx context.Context, tenantID string) ([]types.FAQEntry, error) {
	query := `
		SELECT ` + faqColumns + `
		FROM faqs
		WHERE active = true AND tenant_id IS NOT DISTINCT FROM NULLIF($1, '')
		ORDER BY id
	`

	rows, err := c.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query faqs: %w", err)
	}
	defer rows.Close()

	var entries []types.FAQEntry
	for rows.Next() {
		f, raw, err := scanFAQ(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan faq row: %w", err)
		}
		vec, err := decodeEmbedding(raw)
		if err != nil {
			utils.Zlog.Warn("Skipping undecodable FAQ embedding",
				zap.Int64("faq_id", f.ID),
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
		f.Embedding = vec
		entries = append(entries, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating faqs: %w", err)
	}
	return entries, nil
}

func (c *PostgresClient) GetFAQ(ctx context.Context, id int64) (*types.FAQEntry, error) {
	query := `
		SELECT ` + faqColumns + `
		FROM faqs
		WHERE id = $1 AND active = true
	`

	f, raw, err := scanFAQ(c.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get faq: %w", err)
	}
	if f.Embedding, err = decodeEmbedding(raw); err != nil {
		utils.Zlog.Warn("Stored FAQ embedding is undecodable", zap.Int64("faq_id", id), zap.Error(err))
	}
	return f, nil
}

// CreateFAQ inserts f and fills in its id and timestamps.
func (c *PostgresClient) CreateFAQ(ctx context.Context, f *types.FAQEntry) error {
	query := `
		INSERT INTO faqs (tenant_id, question, answer, embedding, active, created_at, updated_at)
		VALUES (NULLIF($1, ''), $2, $3, $4, true, NOW(), NOW())
		RETURNING id, active, created_at, updated_at
	`

	err := c.pool.QueryRow(ctx, query,
		f.TenantID, f.Question, f.Answer, pgvector.NewVector(f.Embedding),
	).Scan(&f.ID, &f.Active, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create faq: %w", err)
	}
	return nil
}

// UpdateFAQText changes question and answer and leaves the stored embedding untouched.
func (c *PostgresClient) UpdateFAQText(ctx context.Context, f *types.FAQEntry) error {
	query := `
		UPDATE faqs
		SET question = $2, answer = $3, updated_at = NOW()
		WHERE id = $1 AND active = true
	`

	tag, err := c.pool.Exec(ctx, query, f.ID, f.Question, f.Answer)
	if err != nil {
		return fmt.Errorf("failed to update faq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFAQWithEmbedding changes question, answer and embedding together.
func (c *PostgresClient) UpdateFAQWithEmbedding(ctx context.Context, f *types.FAQEntry) error {
	query := `
		UPDATE faqs
		SET question = $2, answer = $3, embedding = $4, updated_at = NOW()
		WHERE id = $1 AND active = true
	`

	tag, err := c.pool.Exec(ctx, query, f.ID, f.Question, f.Answer, pgvector.NewVector(f.Embedding))
	if err != nil {
		return fmt.Errorf("failed to update faq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *PostgresClient) DeactivateFAQ(ctx context.Context, id int64) error {
	query := `
		UPDATE faqs
		SET active = false, updated_at = NOW()
		WHERE id = $1 AND active = true
	`

	tag, err := c.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate faq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
