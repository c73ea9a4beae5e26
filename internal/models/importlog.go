package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Import log statuses
const (
	ImportStatusPending    = "pending"
	ImportStatusProcessing = "processing"
	ImportStatusCompleted  = "completed"
	ImportStatusFailed     = "failed"
	ImportStatusPartial    = "partial"
)

// ImportLog records the outcome of a CSV import run
type ImportLog struct {
	TenantModel

	FileName   string `json:"fileName" db:"file_name"`
	EntityType string `json:"entityType" db:"entity_type"`
	Status     string `json:"status" db:"status"`

	TotalRows     int `json:"totalRows" db:"total_rows"`
	ProcessedRows int `json:"processedRows" db:"processed_rows"`
	FailedRows    int `json:"failedRows" db:"failed_rows"`
	SkippedRows   int `json:"skippedRows" db:"skipped_rows"`

	Errors ImportErrors `json:"errors" db:"errors"`
}

// ImportError is a single rejected row
type ImportError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ImportErrors is a JSON column of row errors
type ImportErrors []ImportError

// Value implements driver.Valuer
func (e ImportErrors) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner
func (e *ImportErrors) Scan(value interface{}) error {
	if value == nil {
		*e = nil
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, e)
	case string:
		return json.Unmarshal([]byte(data), e)
	default:
		return nil
	}
}
