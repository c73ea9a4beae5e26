package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Invoice statuses
const (
	InvoiceStatusDraft  = "draft"
	InvoiceStatusSent   = "sent"
	InvoiceStatusPaid   = "paid"
	InvoiceStatusVoided = "voided"
)

// Invoice represents a sales invoice raised against a client
type Invoice struct {
	TenantModel

	ClientID      uuid.UUID `json:"clientId" db:"client_id"`
	InvoiceNumber string    `json:"invoiceNumber" db:"invoice_number"`

	IssueDate time.Time `json:"issueDate" db:"issue_date"`
	DueDate   time.Time `json:"dueDate" db:"due_date"`

	// Amounts are in minor units (pence)
	Subtotal  int64 `json:"subtotal" db:"subtotal"`
	TaxAmount int64 `json:"taxAmount" db:"tax_amount"`
	Total     int64 `json:"total" db:"total"`

	Status string `json:"status" db:"status"`

	Lines InvoiceLines `json:"lines" db:"lines"`

	// Xero sync state, mirrors Client
	XeroInvoiceID    *string     `json:"xeroInvoiceId,omitempty" db:"xero_invoice_id"`
	XeroSyncStatus   *SyncStatus `json:"xeroSyncStatus,omitempty" db:"xero_sync_status"`
	XeroSyncError    *string     `json:"xeroSyncError,omitempty" db:"xero_sync_error"`
	XeroLastSyncedAt *time.Time  `json:"xeroLastSyncedAt,omitempty" db:"xero_last_synced_at"`
}

// InvoiceLine is a single invoice line item
type InvoiceLine struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unitAmount"`
	TaxRate     string `json:"taxRate,omitempty"`
}

// InvoiceLines is a JSON column of line items
type InvoiceLines []InvoiceLine

// Value implements driver.Valuer
func (l InvoiceLines) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *InvoiceLines) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, l)
	case string:
		return json.Unmarshal([]byte(data), l)
	default:
		return nil
	}
}
