package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface. Tenant-scoped data is only reachable
// through ForTenant, so a query that forgets the tenant filter cannot be
// written.
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// ForTenant returns a view of the store restricted to one tenant
	ForTenant(tenantID uuid.UUID) TenantStore

	// Tenant methods (platform scope)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error)

	// User methods (platform scope; login looks users up across tenants)
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]*models.User, int64, error)

	// Close the store
	Close() error
}

// TenantStore is the tenant-scoped half of the interface. Every write stamps
// the tenant id and every read filters on it.
type TenantStore interface {
	TenantID() uuid.UUID

	// Client methods
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetClientByEmail(ctx context.Context, email string) (*models.Client, error)
	GetClientByRegistrationNumber(ctx context.Context, reg string) (*models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
	ListClients(ctx context.Context, limit, offset int) ([]*models.Client, int64, error)
	LatestClient(ctx context.Context) (*models.Client, error)

	// Sync state transitions
	ListClientsForSync(ctx context.Context, failedOnly bool) ([]*models.Client, error)
	MarkClientSynced(ctx context.Context, id uuid.UUID, xeroContactID string) error
	MarkClientSyncError(ctx context.Context, id uuid.UUID, message string) error
	MarkClientPendingSync(ctx context.Context, id uuid.UUID) error

	// Invoice methods
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	ListInvoices(ctx context.Context, clientID *uuid.UUID, limit, offset int) ([]*models.Invoice, int64, error)

	ListInvoicesForSync(ctx context.Context, failedOnly bool) ([]*models.Invoice, error)
	MarkInvoiceSynced(ctx context.Context, id uuid.UUID, xeroInvoiceID string) error
	MarkInvoiceSyncError(ctx context.Context, id uuid.UUID, message string) error
	MarkInvoicePendingSync(ctx context.Context, id uuid.UUID) error

	// Tenant user lookups (import manager resolution, mentions)
	GetTenantUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListTenantUsers(ctx context.Context) ([]*models.User, error)

	// Integration settings
	IntegrationSettings(ctx context.Context, integrationType string) (*models.IntegrationSettings, error)
	SaveIntegrationSettings(ctx context.Context, settings *models.IntegrationSettings) error

	// Import logs
	CreateImportLog(ctx context.Context, log *models.ImportLog) error
	UpdateImportLog(ctx context.Context, log *models.ImportLog) error
	GetImportLog(ctx context.Context, id uuid.UUID) (*models.ImportLog, error)
	ListImportLogs(ctx context.Context, limit, offset int) ([]*models.ImportLog, int64, error)

	// Lead methods
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	UpdateLead(ctx context.Context, lead *models.Lead) error
	ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, int64, error)

	// Onboarding
	CreateOnboardingTask(ctx context.Context, task *models.OnboardingTask) error

	// ClientSummary feeds the cached dashboard endpoint
	ClientSummary(ctx context.Context) (*ClientSummary, error)
}

// ClientSummary is the per-tenant dashboard rollup
type ClientSummary struct {
	TotalClients  int64 `json:"totalClients"`
	ActiveClients int64 `json:"activeClients"`
	PendingSync   int64 `json:"pendingSync"`
	SyncErrors    int64 `json:"syncErrors"`
	TotalInvoices int64 `json:"totalInvoices"`
}
