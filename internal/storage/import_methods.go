package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
)

const importLogColumns = `id, created_at, updated_at, tenant_id, file_name,
	   entity_type, status, total_rows, processed_rows, failed_rows,
	   skipped_rows, errors`

// ========== Import Log Methods ==========

// CreateImportLog creates a new import log
func (t *pgTenantStore) CreateImportLog(ctx context.Context, log *models.ImportLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.TenantID = t.tenantID

	now := time.Now()
	log.CreatedAt = now
	log.UpdatedAt = now

	query := `
		INSERT INTO import_logs (
			id, created_at, updated_at, tenant_id, file_name, entity_type,
			status, total_rows, processed_rows, failed_rows, skipped_rows, errors
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := t.s.getDB().ExecContext(ctx, query,
		log.ID, log.CreatedAt, log.UpdatedAt, log.TenantID, log.FileName,
		log.EntityType, log.Status, log.TotalRows, log.ProcessedRows,
		log.FailedRows, log.SkippedRows, log.Errors,
	)

	return err
}

// UpdateImportLog updates an import log's progress and outcome
func (t *pgTenantStore) UpdateImportLog(ctx context.Context, log *models.ImportLog) error {
	log.UpdatedAt = time.Now()

	query := `
		UPDATE import_logs SET
			updated_at = $3, status = $4, total_rows = $5, processed_rows = $6,
			failed_rows = $7, skipped_rows = $8, errors = $9
		WHERE tenant_id = $1 AND id = $2`

	result, err := t.s.getDB().ExecContext(ctx, query,
		t.tenantID, log.ID, log.UpdatedAt, log.Status, log.TotalRows,
		log.ProcessedRows, log.FailedRows, log.SkippedRows, log.Errors,
	)

	if err != nil {
		return err
	}

	return checkAffected(result)
}

// GetImportLog gets an import log by ID
func (t *pgTenantStore) GetImportLog(ctx context.Context, id uuid.UUID) (*models.ImportLog, error) {
	query := `SELECT ` + importLogColumns + `
		FROM import_logs
		WHERE tenant_id = $1 AND id = $2`

	log := &models.ImportLog{}
	err := scanImportLog(t.s.getDB().QueryRowContext(ctx, query, t.tenantID, id), log)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return log, err
}

// ListImportLogs lists the tenant's import logs
func (t *pgTenantStore) ListImportLogs(ctx context.Context, limit, offset int) ([]*models.ImportLog, int64, error) {
	var count int64
	err := t.s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM import_logs WHERE tenant_id = $1", t.tenantID,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + importLogColumns + `
		FROM import_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := t.s.getDB().QueryContext(ctx, query, t.tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []*models.ImportLog
	for rows.Next() {
		log := &models.ImportLog{}
		if err := scanImportLog(rows, log); err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}

	return logs, count, rows.Err()
}

func scanImportLog(row rowScanner, log *models.ImportLog) error {
	return row.Scan(
		&log.ID, &log.CreatedAt, &log.UpdatedAt, &log.TenantID, &log.FileName,
		&log.EntityType, &log.Status, &log.TotalRows, &log.ProcessedRows,
		&log.FailedRows, &log.SkippedRows, &log.Errors,
	)
}
