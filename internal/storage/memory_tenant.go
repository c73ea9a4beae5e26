package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
)

// memTenantStore is the tenant-scoped view over MemoryStore
type memTenantStore struct {
	s        *MemoryStore
	tenantID uuid.UUID
}

// TenantID returns the scoped tenant
func (t *memTenantStore) TenantID() uuid.UUID {
	return t.tenantID
}

// ========== Client Methods ==========

// CreateClient creates a client
func (t *memTenantStore) CreateClient(ctx context.Context, client *models.Client) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, existing := range t.s.clients {
		if existing.TenantID == t.tenantID && existing.ClientCode == client.ClientCode {
			return ErrDuplicateKey
		}
	}

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	client.TenantID = t.tenantID
	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now

	cp := *client
	t.s.clients[client.ID] = &cp
	t.s.clientOrder = append(t.s.clientOrder, client.ID)
	return nil
}

// GetClient gets a client by ID
func (t *memTenantStore) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	client, ok := t.s.clients[id]
	if !ok || client.TenantID != t.tenantID {
		return nil, ErrNotFound
	}
	cp := *client
	return &cp, nil
}

// GetClientByEmail gets a client by email
func (t *memTenantStore) GetClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	return t.findClient(func(c *models.Client) bool {
		return c.Email != "" && strings.EqualFold(c.Email, email)
	})
}

// GetClientByRegistrationNumber gets a client by Companies House number
func (t *memTenantStore) GetClientByRegistrationNumber(ctx context.Context, reg string) (*models.Client, error) {
	return t.findClient(func(c *models.Client) bool {
		return c.RegistrationNumber != "" && c.RegistrationNumber == reg
	})
}

func (t *memTenantStore) findClient(match func(*models.Client) bool) (*models.Client, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	for _, client := range t.s.clients {
		if client.TenantID == t.tenantID && match(client) {
			cp := *client
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateClient updates a client
func (t *memTenantStore) UpdateClient(ctx context.Context, client *models.Client) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	existing, ok := t.s.clients[client.ID]
	if !ok || existing.TenantID != t.tenantID {
		return ErrNotFound
	}
	client.TenantID = t.tenantID
	client.UpdatedAt = time.Now()
	cp := *client
	t.s.clients[client.ID] = &cp
	return nil
}

// ListClients lists the tenant's clients, newest first
func (t *memTenantStore) ListClients(ctx context.Context, limit, offset int) ([]*models.Client, int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	clients := t.tenantClientsLocked()
	total := int64(len(clients))
	return paginate(clients, limit, offset), total, nil
}

// LatestClient returns the tenant's most recently created client
func (t *memTenantStore) LatestClient(ctx context.Context) (*models.Client, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	clients := t.tenantClientsLocked()
	if len(clients) == 0 {
		return nil, ErrNotFound
	}
	return clients[0], nil
}

// tenantClientsLocked returns copies in insertion order, newest first
func (t *memTenantStore) tenantClientsLocked() []*models.Client {
	var clients []*models.Client
	for i := len(t.s.clientOrder) - 1; i >= 0; i-- {
		client, ok := t.s.clients[t.s.clientOrder[i]]
		if !ok || client.TenantID != t.tenantID {
			continue
		}
		cp := *client
		clients = append(clients, &cp)
	}
	return clients
}

// ListClientsForSync returns clients awaiting a sync
func (t *memTenantStore) ListClientsForSync(ctx context.Context, failedOnly bool) ([]*models.Client, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var clients []*models.Client
	for i := 0; i < len(t.s.clientOrder); i++ {
		client, ok := t.s.clients[t.s.clientOrder[i]]
		if !ok || client.TenantID != t.tenantID {
			continue
		}
		if syncStatusMatches(client.XeroSyncStatus, failedOnly) {
			cp := *client
			clients = append(clients, &cp)
		}
	}
	return clients, nil
}

func syncStatusMatches(status *models.SyncStatus, failedOnly bool) bool {
	if failedOnly {
		return status != nil && *status == models.SyncStatusError
	}
	return status == nil || *status == models.SyncStatusPending
}

// MarkClientSynced records a successful sync
func (t *memTenantStore) MarkClientSynced(ctx context.Context, id uuid.UUID, xeroContactID string) error {
	return t.updateClientLocked(id, func(c *models.Client) {
		status := models.SyncStatusSynced
		now := time.Now()
		c.XeroContactID = &xeroContactID
		c.XeroSyncStatus = &status
		c.XeroSyncError = nil
		c.XeroLastSyncedAt = &now
	})
}

// MarkClientSyncError records a failed sync
func (t *memTenantStore) MarkClientSyncError(ctx context.Context, id uuid.UUID, message string) error {
	return t.updateClientLocked(id, func(c *models.Client) {
		status := models.SyncStatusError
		c.XeroSyncStatus = &status
		c.XeroSyncError = &message
	})
}

// MarkClientPendingSync flags a client for the next sync run
func (t *memTenantStore) MarkClientPendingSync(ctx context.Context, id uuid.UUID) error {
	return t.updateClientLocked(id, func(c *models.Client) {
		status := models.SyncStatusPending
		c.XeroSyncStatus = &status
		c.XeroSyncError = nil
	})
}

func (t *memTenantStore) updateClientLocked(id uuid.UUID, apply func(*models.Client)) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	client, ok := t.s.clients[id]
	if !ok || client.TenantID != t.tenantID {
		return ErrNotFound
	}
	apply(client)
	client.UpdatedAt = time.Now()
	return nil
}

// ========== Invoice Methods ==========

// CreateInvoice creates an invoice
func (t *memTenantStore) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, existing := range t.s.invoices {
		if existing.TenantID == t.tenantID && existing.InvoiceNumber == invoice.InvoiceNumber {
			return ErrDuplicateKey
		}
	}

	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	invoice.TenantID = t.tenantID
	now := time.Now()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	cp := *invoice
	t.s.invoices[invoice.ID] = &cp
	return nil
}

// GetInvoice gets an invoice by ID
func (t *memTenantStore) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	invoice, ok := t.s.invoices[id]
	if !ok || invoice.TenantID != t.tenantID {
		return nil, ErrNotFound
	}
	cp := *invoice
	return &cp, nil
}

// UpdateInvoice updates an invoice
func (t *memTenantStore) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	existing, ok := t.s.invoices[invoice.ID]
	if !ok || existing.TenantID != t.tenantID {
		return ErrNotFound
	}
	invoice.TenantID = t.tenantID
	invoice.UpdatedAt = time.Now()
	cp := *invoice
	t.s.invoices[invoice.ID] = &cp
	return nil
}

// ListInvoices lists the tenant's invoices
func (t *memTenantStore) ListInvoices(ctx context.Context, clientID *uuid.UUID, limit, offset int) ([]*models.Invoice, int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var invoices []*models.Invoice
	for _, invoice := range t.s.invoices {
		if invoice.TenantID != t.tenantID {
			continue
		}
		if clientID != nil && invoice.ClientID != *clientID {
			continue
		}
		cp := *invoice
		invoices = append(invoices, &cp)
	}
	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].IssueDate.After(invoices[j].IssueDate)
	})

	total := int64(len(invoices))
	return paginate(invoices, limit, offset), total, nil
}

// ListInvoicesForSync returns invoices awaiting a sync
func (t *memTenantStore) ListInvoicesForSync(ctx context.Context, failedOnly bool) ([]*models.Invoice, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var invoices []*models.Invoice
	for _, invoice := range t.s.invoices {
		if invoice.TenantID != t.tenantID {
			continue
		}
		if syncStatusMatches(invoice.XeroSyncStatus, failedOnly) {
			cp := *invoice
			invoices = append(invoices, &cp)
		}
	}
	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.Before(invoices[j].CreatedAt)
	})
	return invoices, nil
}

// MarkInvoiceSynced records a successful sync
func (t *memTenantStore) MarkInvoiceSynced(ctx context.Context, id uuid.UUID, xeroInvoiceID string) error {
	return t.updateInvoiceLocked(id, func(inv *models.Invoice) {
		status := models.SyncStatusSynced
		now := time.Now()
		inv.XeroInvoiceID = &xeroInvoiceID
		inv.XeroSyncStatus = &status
		inv.XeroSyncError = nil
		inv.XeroLastSyncedAt = &now
	})
}

// MarkInvoiceSyncError records a failed sync
func (t *memTenantStore) MarkInvoiceSyncError(ctx context.Context, id uuid.UUID, message string) error {
	return t.updateInvoiceLocked(id, func(inv *models.Invoice) {
		status := models.SyncStatusError
		inv.XeroSyncStatus = &status
		inv.XeroSyncError = &message
	})
}

// MarkInvoicePendingSync flags an invoice for the next sync run
func (t *memTenantStore) MarkInvoicePendingSync(ctx context.Context, id uuid.UUID) error {
	return t.updateInvoiceLocked(id, func(inv *models.Invoice) {
		status := models.SyncStatusPending
		inv.XeroSyncStatus = &status
		inv.XeroSyncError = nil
	})
}

func (t *memTenantStore) updateInvoiceLocked(id uuid.UUID, apply func(*models.Invoice)) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	invoice, ok := t.s.invoices[id]
	if !ok || invoice.TenantID != t.tenantID {
		return ErrNotFound
	}
	apply(invoice)
	invoice.UpdatedAt = time.Now()
	return nil
}

// ========== Tenant User Lookups ==========

// GetTenantUserByEmail resolves an email to a user inside the tenant
func (t *memTenantStore) GetTenantUserByEmail(ctx context.Context, email string) (*models.User, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	for _, user := range t.s.users {
		if user.TenantID != nil && *user.TenantID == t.tenantID && strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListTenantUsers lists all users in the tenant
func (t *memTenantStore) ListTenantUsers(ctx context.Context) ([]*models.User, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var users []*models.User
	for _, user := range t.s.users {
		if user.TenantID != nil && *user.TenantID == t.tenantID {
			cp := *user
			users = append(users, &cp)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// ========== Integration Settings ==========

// IntegrationSettings gets settings for one integration type
func (t *memTenantStore) IntegrationSettings(ctx context.Context, integrationType string) (*models.IntegrationSettings, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	settings, ok := t.s.integrations[t.integrationKey(integrationType)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *settings
	cp.Credentials = append([]byte(nil), settings.Credentials...)
	return &cp, nil
}

// SaveIntegrationSettings inserts or updates the settings row
func (t *memTenantStore) SaveIntegrationSettings(ctx context.Context, settings *models.IntegrationSettings) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}
	settings.TenantID = t.tenantID
	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	cp := *settings
	cp.Credentials = append([]byte(nil), settings.Credentials...)
	t.s.integrations[t.integrationKey(settings.IntegrationType)] = &cp
	return nil
}

func (t *memTenantStore) integrationKey(integrationType string) string {
	return t.tenantID.String() + "/" + integrationType
}

// ========== Import Logs ==========

// CreateImportLog creates an import log
func (t *memTenantStore) CreateImportLog(ctx context.Context, log *models.ImportLog) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.TenantID = t.tenantID
	now := time.Now()
	log.CreatedAt = now
	log.UpdatedAt = now

	cp := *log
	t.s.importLogs[log.ID] = &cp
	return nil
}

// UpdateImportLog updates an import log
func (t *memTenantStore) UpdateImportLog(ctx context.Context, log *models.ImportLog) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	existing, ok := t.s.importLogs[log.ID]
	if !ok || existing.TenantID != t.tenantID {
		return ErrNotFound
	}
	log.UpdatedAt = time.Now()
	cp := *log
	t.s.importLogs[log.ID] = &cp
	return nil
}

// GetImportLog gets an import log by ID
func (t *memTenantStore) GetImportLog(ctx context.Context, id uuid.UUID) (*models.ImportLog, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	log, ok := t.s.importLogs[id]
	if !ok || log.TenantID != t.tenantID {
		return nil, ErrNotFound
	}
	cp := *log
	return &cp, nil
}

// ListImportLogs lists the tenant's import logs
func (t *memTenantStore) ListImportLogs(ctx context.Context, limit, offset int) ([]*models.ImportLog, int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var logs []*models.ImportLog
	for _, log := range t.s.importLogs {
		if log.TenantID == t.tenantID {
			cp := *log
			logs = append(logs, &cp)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})

	total := int64(len(logs))
	return paginate(logs, limit, offset), total, nil
}

// ========== Leads ==========

// CreateLead creates a lead
func (t *memTenantStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	lead.TenantID = t.tenantID
	now := time.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	cp := *lead
	t.s.leads[lead.ID] = &cp
	return nil
}

// GetLead gets a lead by ID
func (t *memTenantStore) GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	lead, ok := t.s.leads[id]
	if !ok || lead.TenantID != t.tenantID {
		return nil, ErrNotFound
	}
	cp := *lead
	return &cp, nil
}

// UpdateLead updates a lead
func (t *memTenantStore) UpdateLead(ctx context.Context, lead *models.Lead) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	existing, ok := t.s.leads[lead.ID]
	if !ok || existing.TenantID != t.tenantID {
		return ErrNotFound
	}
	lead.TenantID = t.tenantID
	lead.UpdatedAt = time.Now()
	cp := *lead
	t.s.leads[lead.ID] = &cp
	return nil
}

// ListLeads lists the tenant's leads
func (t *memTenantStore) ListLeads(ctx context.Context, limit, offset int) ([]*models.Lead, int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var leads []*models.Lead
	for _, lead := range t.s.leads {
		if lead.TenantID == t.tenantID {
			cp := *lead
			leads = append(leads, &cp)
		}
	}
	sort.Slice(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})

	total := int64(len(leads))
	return paginate(leads, limit, offset), total, nil
}

// CreateOnboardingTask creates an onboarding task
func (t *memTenantStore) CreateOnboardingTask(ctx context.Context, task *models.OnboardingTask) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	task.TenantID = t.tenantID
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = models.TaskStatusOpen
	}

	cp := *task
	t.s.tasks[task.ID] = &cp
	return nil
}

// ClientSummary computes the dashboard rollup
func (t *memTenantStore) ClientSummary(ctx context.Context) (*ClientSummary, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	summary := &ClientSummary{}
	for _, client := range t.s.clients {
		if client.TenantID != t.tenantID {
			continue
		}
		summary.TotalClients++
		if client.Status == models.ClientStatusActive {
			summary.ActiveClients++
		}
		if syncStatusMatches(client.XeroSyncStatus, false) {
			summary.PendingSync++
		}
		if syncStatusMatches(client.XeroSyncStatus, true) {
			summary.SyncErrors++
		}
	}
	for _, invoice := range t.s.invoices {
		if invoice.TenantID == t.tenantID {
			summary.TotalInvoices++
		}
	}
	return summary, nil
}
