package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus represents the state of a record relative to the external
// accounting system
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// Client types
const (
	ClientTypeLimitedCompany = "limited_company"
	ClientTypeSoleTrader     = "sole_trader"
	ClientTypePartnership    = "partnership"
	ClientTypeLLP            = "llp"
	ClientTypeCharity        = "charity"
	ClientTypeIndividual     = "individual"
)

// Client statuses
const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
	ClientStatusArchived = "archived"
)

// Client represents a practice client
type Client struct {
	TenantModel

	// ClientCode is unique per tenant, e.g. "CL-042"
	ClientCode string `json:"clientCode" db:"client_code"`
	Name       string `json:"name" db:"name"`
	Type       string `json:"type" db:"type"`
	Status     string `json:"status" db:"status"`

	Email string `json:"email,omitempty" db:"email"`
	Phone string `json:"phone,omitempty" db:"phone"`

	VATNumber          string `json:"vatNumber,omitempty" db:"vat_number"`
	RegistrationNumber string `json:"registrationNumber,omitempty" db:"registration_number"`

	AddressLine1 string `json:"addressLine1,omitempty" db:"address_line1"`
	City         string `json:"city,omitempty" db:"city"`
	Postcode     string `json:"postcode,omitempty" db:"postcode"`
	Country      string `json:"country,omitempty" db:"country"`

	// ManagerID is the user responsible for the client
	ManagerID *uuid.UUID `json:"managerId,omitempty" db:"manager_id"`

	// Xero sync state
	XeroContactID    *string     `json:"xeroContactId,omitempty" db:"xero_contact_id"`
	XeroSyncStatus   *SyncStatus `json:"xeroSyncStatus,omitempty" db:"xero_sync_status"`
	XeroSyncError    *string     `json:"xeroSyncError,omitempty" db:"xero_sync_error"`
	XeroLastSyncedAt *time.Time  `json:"xeroLastSyncedAt,omitempty" db:"xero_last_synced_at"`
}

// ValidClientType reports whether t is a known client type
func ValidClientType(t string) bool {
	switch t {
	case ClientTypeLimitedCompany, ClientTypeSoleTrader, ClientTypePartnership,
		ClientTypeLLP, ClientTypeCharity, ClientTypeIndividual:
		return true
	}
	return false
}

// ValidClientStatus reports whether s is a known client status
func ValidClientStatus(s string) bool {
	switch s {
	case ClientStatusActive, ClientStatusInactive, ClientStatusArchived:
		return true
	}
	return false
}
