package models

import (
	"github.com/google/uuid"
)

// Lead statuses
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusLost      = "lost"
)

// Lead represents a prospective client
type Lead struct {
	TenantModel

	Name   string `json:"name" db:"name"`
	Email  string `json:"email,omitempty" db:"email"`
	Phone  string `json:"phone,omitempty" db:"phone"`
	Source string `json:"source,omitempty" db:"source"`
	Status string `json:"status" db:"status"`

	Notes string `json:"notes,omitempty" db:"notes"`

	// ConvertedClientID is set once the lead becomes a client
	ConvertedClientID *uuid.UUID `json:"convertedClientId,omitempty" db:"converted_client_id"`
}

// OnboardingTask tracks a setup step created when a lead converts
type OnboardingTask struct {
	TenantModel

	ClientID  uuid.UUID `json:"clientId" db:"client_id"`
	Title     string    `json:"title" db:"title"`
	Status    string    `json:"status" db:"status"`
	SortOrder int       `json:"sortOrder" db:"sort_order"`
}

// Onboarding task statuses
const (
	TaskStatusOpen = "open"
	TaskStatusDone = "done"
)

// DefaultOnboardingTitles are the tasks created for every converted lead
var DefaultOnboardingTitles = []string{
	"Send engagement letter",
	"Collect anti-money-laundering documents",
	"Request prior-year accounts",
}
