package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
)

const leadColumns = `id, created_at, updated_at, tenant_id, name, email, phone,
	   source, status, notes, converted_client_id`

// ========== Lead Methods ==========

// CreateLead creates a new lead
func (t *pgTenantStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	lead.TenantID = t.tenantID

	now := time.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	query := `
		INSERT INTO leads (
			id, created_at, updated_at, tenant_id, name, email, phone,
			source, status, notes, converted_client_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := t.s.getDB().ExecContext(ctx, query,
		lead.ID, lead.CreatedAt, lead.UpdatedAt, lead.TenantID, lead.Name,
		lead.Email, lead.Phone, lead.Source, lead.Status, lead.Notes,
		lead.ConvertedClientID,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetLead gets a lead by ID
func (t *pgTenantStore) GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + `
		FROM leads
		WHERE tenant_id = $1 AND id = $2`

	lead := &models.Lead{}
	err := scanLead(t.s.getDB().QueryRowContext(ctx, query, t.tenantID, id), lead)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return lead, err
}

// UpdateLead updates a lead
func (t *pgTenantStore) UpdateLead(ctx context.Context, lead *models.Lead) error {
	lead.UpdatedAt = time.Now()

	query := `
		UPDATE leads SET
			updated_at = $3, name = $4, email = $5, phone = $6, source = $7,
			status = $8, notes = $9, converted_client_id = $10
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query,
		t.tenantID, lead.ID, lead.UpdatedAt, lead.Name, lead.Email,
		lead.Phone, lead.Source, lead.Status, lead.Notes,
		lead.ConvertedClientID,
	)

	if err != nil {
		return err
	}

	return checkAffected(result)
}

// ListLeads lists the tenant's leads
func (t *pgTenantStore) ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, int64, error) {
	var count int64
	err := t.s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leads WHERE tenant_id = $1", t.tenantID,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + leadColumns + `
		FROM leads
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := t.s.getDB().QueryContext(ctx, query, t.tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead := &models.Lead{}
		if err := scanLead(rows, lead); err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}

	return leads, count, rows.Err()
}

// CreateOnboardingTask creates an onboarding task for a client
func (t *pgTenantStore) CreateOnboardingTask(ctx context.Context, task *models.OnboardingTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	task.TenantID = t.tenantID

	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	if task.Status == "" {
		task.Status = models.TaskStatusOpen
	}

	query := `
		INSERT INTO onboarding_tasks (
			id, created_at, updated_at, tenant_id, client_id, title, status,
			sort_order
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err := t.s.getDB().ExecContext(ctx, query,
		task.ID, task.CreatedAt, task.UpdatedAt, task.TenantID, task.ClientID,
		task.Title, task.Status, task.SortOrder,
	)

	return err
}

func scanLead(row rowScanner, lead *models.Lead) error {
	return row.Scan(
		&lead.ID, &lead.CreatedAt, &lead.UpdatedAt, &lead.TenantID,
		&lead.Name, &lead.Email, &lead.Phone, &lead.Source, &lead.Status,
		&lead.Notes, &lead.ConvertedClientID,
	)
}
