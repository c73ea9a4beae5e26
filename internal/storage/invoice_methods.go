package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
)

const invoiceColumns = `id, created_at, updated_at, tenant_id, client_id,
	   invoice_number, issue_date, due_date, subtotal, tax_amount, total,
	   status, lines, xero_invoice_id, xero_sync_status, xero_sync_error,
	   xero_last_synced_at`

// ========== Invoice Methods ==========

// CreateInvoice creates a new invoice for the scoped tenant
func (t *pgTenantStore) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	invoice.TenantID = t.tenantID

	now := time.Now()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	query := `
		INSERT INTO invoices (
			id, created_at, updated_at, tenant_id, client_id, invoice_number,
			issue_date, due_date, subtotal, tax_amount, total, status, lines,
			xero_invoice_id, xero_sync_status, xero_sync_error, xero_last_synced_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17
		)`

	_, err := t.s.getDB().ExecContext(ctx, query,
		invoice.ID, invoice.CreatedAt, invoice.UpdatedAt, invoice.TenantID,
		invoice.ClientID, invoice.InvoiceNumber, invoice.IssueDate,
		invoice.DueDate, invoice.Subtotal, invoice.TaxAmount, invoice.Total,
		invoice.Status, invoice.Lines, invoice.XeroInvoiceID,
		invoice.XeroSyncStatus, invoice.XeroSyncError, invoice.XeroLastSyncedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetInvoice gets an invoice by ID
func (t *pgTenantStore) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1 AND id = $2`

	invoice := &models.Invoice{}
	err := scanInvoice(t.s.getDB().QueryRowContext(ctx, query, t.tenantID, id), invoice)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return invoice, err
}

// UpdateInvoice updates an invoice
func (t *pgTenantStore) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	invoice.UpdatedAt = time.Now()

	query := `
		UPDATE invoices SET
			updated_at = $3, invoice_number = $4, issue_date = $5,
			due_date = $6, subtotal = $7, tax_amount = $8, total = $9,
			status = $10, lines = $11
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query,
		t.tenantID, invoice.ID, invoice.UpdatedAt, invoice.InvoiceNumber,
		invoice.IssueDate, invoice.DueDate, invoice.Subtotal,
		invoice.TaxAmount, invoice.Total, invoice.Status, invoice.Lines,
	)

	if err != nil {
		return err
	}

	return checkAffected(result)
}

// ListInvoices lists the tenant's invoices, optionally for one client
func (t *pgTenantStore) ListInvoices(ctx context.Context, clientID *uuid.UUID, limit, offset int) ([]*models.Invoice, int64, error) {
	where := `tenant_id = $1`
	args := []interface{}{t.tenantID}

	if clientID != nil {
		where += ` AND client_id = $2`
		args = append(args, *clientID)
	}

	var count int64
	err := t.s.getDB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE `+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE ` + where + `
		ORDER BY issue_date DESC, created_at DESC`

	if clientID != nil {
		query += ` LIMIT $3 OFFSET $4`
	} else {
		query += ` LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	rows, err := t.s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invoices, err := collectInvoices(rows)
	if err != nil {
		return nil, 0, err
	}

	return invoices, count, nil
}

// ListInvoicesForSync returns invoices awaiting a sync
func (t *pgTenantStore) ListInvoicesForSync(ctx context.Context, failedOnly bool) ([]*models.Invoice, error) {
	where := `(xero_sync_status IS NULL OR xero_sync_status = 'pending')`
	if failedOnly {
		where = `xero_sync_status = 'error'`
	}

	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1 AND ` + where + `
		ORDER BY created_at`

	rows, err := t.s.getDB().QueryContext(ctx, query, t.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// MarkInvoiceSynced records a successful sync
func (t *pgTenantStore) MarkInvoiceSynced(ctx context.Context, id uuid.UUID, xeroInvoiceID string) error {
	query := `
		UPDATE invoices SET
			updated_at = NOW(), xero_invoice_id = $3, xero_sync_status = 'synced',
			xero_sync_error = NULL, xero_last_synced_at = NOW()
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query, t.tenantID, id, xeroInvoiceID)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// MarkInvoiceSyncError records a failed sync
func (t *pgTenantStore) MarkInvoiceSyncError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE invoices SET
			updated_at = NOW(), xero_sync_status = 'error', xero_sync_error = $3
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query, t.tenantID, id, message)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// MarkInvoicePendingSync flags an invoice for the next sync run
func (t *pgTenantStore) MarkInvoicePendingSync(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE invoices SET
			updated_at = NOW(), xero_sync_status = 'pending', xero_sync_error = NULL
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query, t.tenantID, id)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

func scanInvoice(row rowScanner, invoice *models.Invoice) error {
	return row.Scan(
		&invoice.ID, &invoice.CreatedAt, &invoice.UpdatedAt, &invoice.TenantID,
		&invoice.ClientID, &invoice.InvoiceNumber, &invoice.IssueDate,
		&invoice.DueDate, &invoice.Subtotal, &invoice.TaxAmount,
		&invoice.Total, &invoice.Status, &invoice.Lines,
		&invoice.XeroInvoiceID, &invoice.XeroSyncStatus,
		&invoice.XeroSyncError, &invoice.XeroLastSyncedAt,
	)
}

func collectInvoices(rows *sql.Rows) ([]*models.Invoice, error) {
	var invoices []*models.Invoice
	for rows.Next() {
		invoice := &models.Invoice{}
		if err := scanInvoice(rows, invoice); err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}
