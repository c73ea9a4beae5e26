package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
)

const clientColumns = `id, created_at, updated_at, tenant_id, client_code, name,
	   type, status, email, phone, vat_number, registration_number,
	   address_line1, city, postcode, country, manager_id,
	   xero_contact_id, xero_sync_status, xero_sync_error, xero_last_synced_at`

// ========== Client Methods ==========

// CreateClient creates a new client for the scoped tenant
func (t *pgTenantStore) CreateClient(ctx context.Context, client *models.Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	client.TenantID = t.tenantID

	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now

	query := `
		INSERT INTO clients (
			id, created_at, updated_at, tenant_id, client_code, name, type,
			status, email, phone, vat_number, registration_number,
			address_line1, city, postcode, country, manager_id,
			xero_contact_id, xero_sync_status, xero_sync_error, xero_last_synced_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21
		)`

	_, err := t.s.getDB().ExecContext(ctx, query,
		client.ID, client.CreatedAt, client.UpdatedAt, client.TenantID,
		client.ClientCode, client.Name, client.Type, client.Status,
		client.Email, client.Phone, client.VATNumber, client.RegistrationNumber,
		client.AddressLine1, client.City, client.Postcode, client.Country,
		client.ManagerID, client.XeroContactID, client.XeroSyncStatus,
		client.XeroSyncError, client.XeroLastSyncedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetClient gets a client by ID
func (t *pgTenantStore) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	return t.getClientWhere(ctx, "id = $2", id)
}

// GetClientByEmail gets a client by email
func (t *pgTenantStore) GetClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	return t.getClientWhere(ctx, "email = $2", strings.ToLower(email))
}

// GetClientByRegistrationNumber gets a client by Companies House number
func (t *pgTenantStore) GetClientByRegistrationNumber(ctx context.Context, reg string) (*models.Client, error) {
	return t.getClientWhere(ctx, "registration_number = $2", reg)
}

func (t *pgTenantStore) getClientWhere(ctx context.Context, where string, arg interface{}) (*models.Client, error) {
	query := `SELECT ` + clientColumns + `
		FROM clients
		WHERE tenant_id = $1 AND ` + where

	client := &models.Client{}
	err := scanClient(t.s.getDB().QueryRowContext(ctx, query, t.tenantID, arg), client)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return client, err
}

// UpdateClient updates a client
func (t *pgTenantStore) UpdateClient(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now()

	query := `
		UPDATE clients SET
			updated_at = $3, client_code = $4, name = $5, type = $6,
			status = $7, email = $8, phone = $9, vat_number = $10,
			registration_number = $11, address_line1 = $12, city = $13,
			postcode = $14, country = $15, manager_id = $16
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query,
		t.tenantID, client.ID, client.UpdatedAt, client.ClientCode,
		client.Name, client.Type, client.Status, client.Email, client.Phone,
		client.VATNumber, client.RegistrationNumber, client.AddressLine1,
		client.City, client.Postcode, client.Country, client.ManagerID,
	)

	if err != nil {
		return err
	}

	return checkAffected(result)
}

// ListClients lists the tenant's clients
func (t *pgTenantStore) ListClients(ctx context.Context, limit, offset int) ([]*models.Client, int64, error) {
	var count int64
	err := t.s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clients WHERE tenant_id = $1", t.tenantID,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + clientColumns + `
		FROM clients
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := t.s.getDB().QueryContext(ctx, query, t.tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	clients, err := collectClients(rows)
	if err != nil {
		return nil, 0, err
	}

	return clients, count, nil
}

// LatestClient returns the tenant's most recently created client
func (t *pgTenantStore) LatestClient(ctx context.Context) (*models.Client, error) {
	query := `SELECT ` + clientColumns + `
		FROM clients
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	client := &models.Client{}
	err := scanClient(t.s.getDB().QueryRowContext(ctx, query, t.tenantID), client)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return client, err
}

// ListClientsForSync returns clients awaiting a sync. With failedOnly the
// filter is status = error, otherwise status is pending or never synced.
func (t *pgTenantStore) ListClientsForSync(ctx context.Context, failedOnly bool) ([]*models.Client, error) {
	where := `(xero_sync_status IS NULL OR xero_sync_status = 'pending')`
	if failedOnly {
		where = `xero_sync_status = 'error'`
	}

	query := `SELECT ` + clientColumns + `
		FROM clients
		WHERE tenant_id = $1 AND ` + where + `
		ORDER BY created_at`

	rows, err := t.s.getDB().QueryContext(ctx, query, t.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectClients(rows)
}

// MarkClientSynced records a successful sync
func (t *pgTenantStore) MarkClientSynced(ctx context.Context, id uuid.UUID, xeroContactID string) error {
	query := `
		UPDATE clients SET
			updated_at = NOW(), xero_contact_id = $3, xero_sync_status = 'synced',
			xero_sync_error = NULL, xero_last_synced_at = NOW()
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query, t.tenantID, id, xeroContactID)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// MarkClientSyncError records a failed sync
func (t *pgTenantStore) MarkClientSyncError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE clients SET
			updated_at = NOW(), xero_sync_status = 'error', xero_sync_error = $3
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query, t.tenantID, id, message)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// MarkClientPendingSync flags a client for the next sync run
func (t *pgTenantStore) MarkClientPendingSync(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE clients SET
			updated_at = NOW(), xero_sync_status = 'pending', xero_sync_error = NULL
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query, t.tenantID, id)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(row rowScanner, client *models.Client) error {
	return row.Scan(
		&client.ID, &client.CreatedAt, &client.UpdatedAt, &client.TenantID,
		&client.ClientCode, &client.Name, &client.Type, &client.Status,
		&client.Email, &client.Phone, &client.VATNumber,
		&client.RegistrationNumber, &client.AddressLine1, &client.City,
		&client.Postcode, &client.Country, &client.ManagerID,
		&client.XeroContactID, &client.XeroSyncStatus, &client.XeroSyncError,
		&client.XeroLastSyncedAt,
	)
}

func collectClients(rows *sql.Rows) ([]*models.Client, error) {
	var clients []*models.Client
	for rows.Next() {
		client := &models.Client{}
		if err := scanClient(rows, client); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}
