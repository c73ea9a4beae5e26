package models

import (
	"time"

	"github.com/google/uuid"
)

// Integration types
const (
	IntegrationTypeXero = "xero"
)

// IntegrationSettings holds a tenant's connection to an external system.
// Credentials is an AES-GCM encrypted blob; the plaintext shape is
// IntegrationCredentials.
type IntegrationSettings struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID        uuid.UUID `json:"tenantId" db:"tenant_id"`
	IntegrationType string    `json:"integrationType" db:"integration_type"`

	Enabled     bool   `json:"enabled" db:"enabled"`
	Credentials []byte `json:"-" db:"credentials"`

	SyncStatus string `json:"syncStatus,omitempty" db:"sync_status"`
}

// IntegrationCredentials is the decrypted credential payload
type IntegrationCredentials struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`

	// ExternalTenantID is the tenant identifier inside the external system
	// (Xero-Tenant-Id header)
	ExternalTenantID string `json:"externalTenantId"`
}
