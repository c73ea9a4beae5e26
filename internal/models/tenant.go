package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an accountancy practice (the root of data isolation)
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`

	ContactEmail string `json:"contactEmail,omitempty" db:"contact_email"`
	BillingPlan  string `json:"billingPlan,omitempty" db:"billing_plan"`

	// Status
	IsActive    bool       `json:"isActive" db:"is_active"`
	SuspendedAt *time.Time `json:"suspendedAt,omitempty" db:"suspended_at"`
}
