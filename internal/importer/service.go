package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

// Service runs the two-phase client import: Preview validates a file
// without writing anything, Commit validates again and inserts the
// accepted rows under an import log.
type Service struct {
	maxRows int
	log     zerolog.Logger
}

// NewService creates an import service
func NewService(maxRows int, logger zerolog.Logger) *Service {
	return &Service{
		maxRows: maxRows,
		log:     logger.With().Str("component", "importer").Logger(),
	}
}

// Preview parses and validates the file and reports what Commit would do
func (s *Service) Preview(ctx context.Context, ts storage.TenantStore, r io.Reader) (*ValidationResult, error) {
	rows, err := ParseCSV(r, s.maxRows)
	if err != nil {
		return nil, err
	}
	return ValidateClientImport(ctx, ts, rows)
}

// Commit validates the file and inserts every accepted row. Rejected rows
// are recorded on the import log; an insert failure on one row does not
// stop the rest.
func (s *Service) Commit(ctx context.Context, ts storage.TenantStore, fileName string, r io.Reader) (*models.ImportLog, *ValidationResult, error) {
	rows, err := ParseCSV(r, s.maxRows)
	if err != nil {
		return nil, nil, err
	}

	log := &models.ImportLog{
		FileName:   fileName,
		EntityType: "client",
		Status:     models.ImportStatusProcessing,
		TotalRows:  len(rows),
	}
	if err := ts.CreateImportLog(ctx, log); err != nil {
		return nil, nil, fmt.Errorf("create import log: %w", err)
	}

	result, err := ValidateClientImport(ctx, ts, rows)
	if err != nil {
		log.Status = models.ImportStatusFailed
		log.Errors = append(log.Errors, models.ImportError{Message: err.Error()})
		_ = ts.UpdateImportLog(ctx, log)
		return log, nil, err
	}

	for _, client := range result.Validated {
		code, err := NextClientCode(ctx, ts)
		if err != nil {
			return log, result, fmt.Errorf("generate client code: %w", err)
		}
		client.ClientCode = code

		if err := ts.CreateClient(ctx, client); err != nil {
			s.log.Warn().
				Str("tenant_id", ts.TenantID().String()).
				Str("client_name", client.Name).
				Err(err).
				Msg("import row insert failed")

			result.Errors = append(result.Errors, models.ImportError{
				Field:   "company_name",
				Message: fmt.Sprintf("%s: insert failed: %v", client.Name, err),
				Value:   client.Name,
			})
			log.FailedRows++
			continue
		}

		// Imported clients join the next Xero sync run
		_ = ts.MarkClientPendingSync(ctx, client.ID)
		log.ProcessedRows++
	}

	log.FailedRows += result.ErrorRows
	log.SkippedRows = 0
	log.Errors = append(log.Errors, result.Errors...)
	log.Status = importStatus(log.ProcessedRows, log.FailedRows)

	if err := ts.UpdateImportLog(ctx, log); err != nil {
		return log, result, fmt.Errorf("update import log: %w", err)
	}

	s.log.Info().
		Str("tenant_id", ts.TenantID().String()).
		Str("file", fileName).
		Int("processed", log.ProcessedRows).
		Int("failed", log.FailedRows).
		Msg("client import complete")

	return log, result, nil
}

func importStatus(processed, failed int) string {
	switch {
	case failed == 0:
		return models.ImportStatusCompleted
	case processed == 0:
		return models.ImportStatusFailed
	default:
		return models.ImportStatusPartial
	}
}
