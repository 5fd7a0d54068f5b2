package loaders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Conversly/whatsapp-faq-bot/internal/types"
)

const tenantColumns = `id, name, whatsapp_phone_number_id, whatsapp_api_token,
       ai_system_instruction, ai_model_name, active, created_at, updated_at`

func scanTenant(row pgx.Row) (*types.Tenant, error) {
	var t types.Tenant
	err := row.Scan(
		&t.ID, &t.Name, &t.PhoneNumberID, &t.APIToken,
		&t.SystemInstruction, &t.ModelName, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetActiveTenantByPhoneNumberID returns the active tenant bound to a
// WhatsApp phone number id, or ErrNotFound.
func (c *PostgresClient) GetActiveTenantByPhoneNumberID(ctx context.Context, phoneNumberID string) (*types.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE whatsapp_phone_number_id = $1 AND active = true
		LIMIT 1
	`

	t, err := scanTenant(c.pool.QueryRow(ctx, query, phoneNumberID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant by phone number id: %w", err)
	}
	return t, nil
}

func (c *PostgresClient) GetTenant(ctx context.Context, id string) (*types.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1
	`

	t, err := scanTenant(c.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

func (c *PostgresClient) ListTenants(ctx context.Context, includeInactive bool) ([]types.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE active = true OR $1
		ORDER BY name, id
	`

	rows, err := c.pool.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []types.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}
	return tenants, nil
}

// CreateTenant inserts t. t.ID must already be set.
func (c *PostgresClient) CreateTenant(ctx context.Context, t *types.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, whatsapp_phone_number_id, whatsapp_api_token,
		                     ai_system_instruction, ai_model_name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, NOW(), NOW())
		RETURNING active, created_at, updated_at
	`

	err := c.pool.QueryRow(ctx, query,
		t.ID, t.Name, t.PhoneNumberID, t.APIToken, t.SystemInstruction, t.ModelName,
	).Scan(&t.Active, &t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (c *PostgresClient) UpdateTenant(ctx context.Context, t *types.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $2, whatsapp_phone_number_id = $3, whatsapp_api_token = $4,
		    ai_system_instruction = $5, ai_model_name = $6, updated_at = NOW()
		WHERE id = $1 AND active = true
		RETURNING updated_at
	`

	err := c.pool.QueryRow(ctx, query,
		t.ID, t.Name, t.PhoneNumberID, t.APIToken, t.SystemInstruction, t.ModelName,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

// DeactivateTenant soft-deletes a tenant so its conversations stay resolvable.
func (c *PostgresClient) DeactivateTenant(ctx context.Context, id string) error {
	query := `
		UPDATE tenants
		SET active = false, updated_at = NOW()
		WHERE id = $1 AND active = true
	`

	tag, err := c.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
