package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
)

// ========== Integration Settings Methods ==========

// IntegrationSettings gets the tenant's settings for one integration type.
// Returns ErrNotFound when the tenant has never connected the integration.
func (t *pgTenantStore) IntegrationSettings(ctx context.Context, integrationType string) (*models.IntegrationSettings, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, integration_type,
			   enabled, credentials, sync_status
		FROM integration_settings
		WHERE tenant_id = $1 AND integration_type = $2`

	settings := &models.IntegrationSettings{}
	err := t.s.getDB().QueryRowContext(ctx, query, t.tenantID, integrationType).Scan(
		&settings.ID, &settings.CreatedAt, &settings.UpdatedAt,
		&settings.TenantID, &settings.IntegrationType, &settings.Enabled,
		&settings.Credentials, &settings.SyncStatus,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return settings, err
}

// SaveIntegrationSettings inserts or updates the settings row. One row per
// (tenant, integration type).
func (t *pgTenantStore) SaveIntegrationSettings(ctx context.Context, settings *models.IntegrationSettings) error {
	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}
	settings.TenantID = t.tenantID

	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	query := `
		INSERT INTO integration_settings (
			id, created_at, updated_at, tenant_id, integration_type, enabled,
			credentials, sync_status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (tenant_id, integration_type) DO UPDATE SET
			updated_at = EXCLUDED.updated_at,
			enabled = EXCLUDED.enabled,
			credentials = EXCLUDED.credentials,
			sync_status = EXCLUDED.sync_status`

	_, err := t.s.getDB().ExecContext(ctx, query,
		settings.ID, settings.CreatedAt, settings.UpdatedAt, settings.TenantID,
		settings.IntegrationType, settings.Enabled, settings.Credentials,
		settings.SyncStatus,
	)

	return err
}

// ========== Tenant User Lookups ==========

// GetTenantUserByEmail resolves an email to a user inside the tenant
func (t *pgTenantStore) GetTenantUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, created_at, updated_at, email, first_name, last_name,
			   is_admin, is_active, last_login_at, tenant_id
		FROM users
		WHERE tenant_id = $1 AND LOWER(email) = LOWER($2)`

	user := &models.User{}
	err := t.s.getDB().QueryRowContext(ctx, query, t.tenantID, email).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email,
		&user.FirstName, &user.LastName, &user.IsAdmin, &user.IsActive,
		&user.LastLoginAt, &user.TenantID,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return user, err
}

// ListTenantUsers lists all users in the tenant
func (t *pgTenantStore) ListTenantUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, created_at, updated_at, email, first_name, last_name,
			   is_admin, is_active, last_login_at, tenant_id
		FROM users
		WHERE tenant_id = $1
		ORDER BY created_at`

	rows, err := t.s.getDB().QueryContext(ctx, query, t.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email,
			&user.FirstName, &user.LastName, &user.IsAdmin, &user.IsActive,
			&user.LastLoginAt, &user.TenantID,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// ClientSummary computes the dashboard rollup for the tenant
func (t *pgTenantStore) ClientSummary(ctx context.Context) (*ClientSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE xero_sync_status IS NULL OR xero_sync_status = 'pending'),
			COUNT(*) FILTER (WHERE xero_sync_status = 'error')
		FROM clients
		WHERE tenant_id = $1`

	summary := &ClientSummary{}
	err := t.s.getDB().QueryRowContext(ctx, query, t.tenantID).Scan(
		&summary.TotalClients, &summary.ActiveClients,
		&summary.PendingSync, &summary.SyncErrors,
	)
	if err != nil {
		return nil, err
	}

	err = t.s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM invoices WHERE tenant_id = $1", t.tenantID,
	).Scan(&summary.TotalInvoices)
	if err != nil {
		return nil, err
	}

	return summary, nil
}
