package loaders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Conversly/whatsapp-faq-bot/internal/types"
)

const conversationColumns = `id, tenant_id, wa_id, message_text, sender, response_text, source, wa_message_id, created_at`

func scanConversation(row pgx.Row) (*types.ConversationMessage, error) {
	var m types.ConversationMessage
	err := row.Scan(&m.ID, &m.TenantID, &m.WaID, &m.MessageText, &m.Sender,
		&m.ResponseText, &m.Source, &m.WaMessageID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectConversations(rows pgx.Rows) ([]types.ConversationMessage, error) {
	defer rows.Close()

	var out []types.ConversationMessage
	for rows.Next() {
		m, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return out, nil
}

// InsertConversationMessage appends one exchange and fills in its id and timestamp.
func (c *PostgresClient) InsertConversationMessage(ctx context.Context, m *types.ConversationMessage) error {
	if m.Sender == "" {
		m.Sender = types.SenderUser
	}

	query := `
		INSERT INTO conversations (tenant_id, wa_id, message_text, sender, response_text, source, wa_message_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, NOW())
		RETURNING id, created_at
	`

	err := c.pool.QueryRow(ctx, query,
		m.TenantID, m.WaID, m.MessageText, m.Sender, m.ResponseText, m.Source, m.WaMessageID,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation message: %w", err)
	}
	return nil
}

// GetConversationHistory returns the last limit messages of one end-user,
// oldest first.
func (c *PostgresClient) GetConversationHistory(ctx context.Context, tenantID, waID string, limit int) ([]types.ConversationMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND wa_id = $2 AND active = true
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := c.pool.Query(ctx, query, tenantID, waID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	messages, err := collectConversations(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetConversationThread returns up to limit messages of one end-user in
// ascending order, for the admin view.
func (c *PostgresClient) GetConversationThread(ctx context.Context, tenantID, waID string, limit int) ([]types.ConversationMessage, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND wa_id = $2 AND active = true
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`

	rows, err := c.pool.Query(ctx, query, tenantID, waID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation thread: %w", err)
	}
	return collectConversations(rows)
}

// ListLatestConversations returns the most recent message of every end-user
// of a tenant, newest conversation first.
func (c *PostgresClient) ListLatestConversations(ctx context.Context, tenantID string) ([]types.ConversationMessage, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM (
			SELECT DISTINCT ON (wa_id) ` + conversationColumns + `
			FROM conversations
			WHERE tenant_id = $1 AND active = true
			ORDER BY wa_id, created_at DESC, id DESC
		) latest
		ORDER BY created_at DESC
	`

	rows, err := c.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return collectConversations(rows)
}

// HideConversation soft-deletes every message of one end-user and reports how
// many rows were hidden.
func (c *PostgresClient) HideConversation(ctx context.Context, tenantID, waID string) (int64, error) {
	query := `
		UPDATE conversations
		SET active = false
		WHERE tenant_id = $1 AND wa_id = $2 AND active = true
	`

	tag, err := c.pool.Exec(ctx, query, tenantID, waID)
	if err != nil {
		return 0, fmt.Errorf("failed to hide conversation: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetConversationStats aggregates message counts for the dashboard.
func (c *PostgresClient) GetConversationStats(ctx context.Context, tenantID string) (*types.ConversationStats, error) {
	stats := &types.ConversationStats{}

	err := c.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT wa_id)
		FROM conversations
		WHERE tenant_id = $1 AND active = true
	`, tenantID).Scan(&stats.TotalMessages, &stats.DistinctUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	stats.Daily, err = c.countByBucket(ctx, tenantID, "day", "30 days")
	if err != nil {
		return nil, err
	}
	stats.Monthly, err = c.countByBucket(ctx, tenantID, "month", "12 months")
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *PostgresClient) countByBucket(ctx context.Context, tenantID, unit, window string) ([]types.DailyCount, error) {
	query := `
		SELECT date_trunc($2, created_at) AS bucket, COUNT(*)
		FROM conversations
		WHERE tenant_id = $1 AND active = true AND created_at >= NOW() - $3::interval
		GROUP BY bucket
		ORDER BY bucket
	`

	rows, err := c.pool.Query(ctx, query, tenantID, unit, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations per %s: %w", unit, err)
	}
	defer rows.Close()

	var out []types.DailyCount
	for rows.Next() {
		var dc types.DailyCount
		if err := rows.Scan(&dc.Bucket, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s bucket: %w", unit, err)
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s buckets: %w", unit, err)
	}
	return out, nil
}
