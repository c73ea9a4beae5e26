package xero

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

// Result is the outcome of a single record sync. Failures are reported
// here and persisted on the record, never raised to the caller.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BatchResult counts successful syncs in one ProcessPending run
type BatchResult struct {
	ClientsSynced  int `json:"clientsSynced"`
	InvoicesSynced int `json:"invoicesSynced"`
}

// RetryResult counts successful re-syncs in one RetryFailed run
type RetryResult struct {
	ClientsRetried  int `json:"clientsRetried"`
	InvoicesRetried int `json:"invoicesRetried"`
}

// Orchestrator maps local records to Xero resources, drives the API
// client and persists sync state back onto the rows
type Orchestrator struct {
	client *Client
	log    zerolog.Logger
}

// NewOrchestrator creates a sync orchestrator
func NewOrchestrator(client *Client, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client: client,
		log:    logger.With().Str("component", "xero-sync").Logger(),
	}
}

// SyncClient pushes one client to Xero as a contact
func (o *Orchestrator) SyncClient(ctx context.Context, ts storage.TenantStore, clientID uuid.UUID) Result {
	client, err := ts.GetClient(ctx, clientID)
	if err != nil {
		return o.failClient(ctx, ts, clientID, err)
	}

	contact := contactFromClient(client)
	synced, err := o.client.CreateOrUpdateContact(ctx, ts, contact)
	if err != nil {
		return o.failClient(ctx, ts, clientID, err)
	}

	if err := ts.MarkClientSynced(ctx, clientID, synced.ContactID); err != nil {
		return o.failClient(ctx, ts, clientID, err)
	}

	o.log.Info().
		Str("tenant_id", ts.TenantID().String()).
		Str("client_id", clientID.String()).
		Str("xero_contact_id", synced.ContactID).
		Msg("client synced to Xero")

	return Result{Success: true}
}

// SyncInvoice pushes one invoice to Xero. When the linked client has not
// been synced yet, the client is synced first.
func (o *Orchestrator) SyncInvoice(ctx context.Context, ts storage.TenantStore, invoiceID uuid.UUID) Result {
	invoice, err := ts.GetInvoice(ctx, invoiceID)
	if err != nil {
		return o.failInvoice(ctx, ts, invoiceID, err)
	}

	client, err := ts.GetClient(ctx, invoice.ClientID)
	if err != nil {
		return o.failInvoice(ctx, ts, invoiceID, err)
	}

	if client.XeroContactID == nil {
		if res := o.SyncClient(ctx, ts, client.ID); !res.Success {
			_ = ts.MarkInvoiceSyncError(ctx, invoiceID, res.Error)
			return Result{Success: false, Error: res.Error}
		}
		client, err = ts.GetClient(ctx, invoice.ClientID)
		if err != nil {
			return o.failInvoice(ctx, ts, invoiceID, err)
		}
	}

	xeroInvoice := invoiceFromModel(invoice, *client.XeroContactID)
	synced, err := o.client.CreateOrUpdateInvoice(ctx, ts, xeroInvoice)
	if err != nil {
		return o.failInvoice(ctx, ts, invoiceID, err)
	}

	if err := ts.MarkInvoiceSynced(ctx, invoiceID, synced.InvoiceID); err != nil {
		return o.failInvoice(ctx, ts, invoiceID, err)
	}

	o.log.Info().
		Str("tenant_id", ts.TenantID().String()).
		Str("invoice_id", invoiceID.String()).
		Str("xero_invoice_id", synced.InvoiceID).
		Msg("invoice synced to Xero")

	return Result{Success: true}
}

// ProcessPending syncs every client and invoice in the tenant whose sync
// status is pending or unset. Records are processed sequentially and a
// failure on one record does not stop the rest.
func (o *Orchestrator) ProcessPending(ctx context.Context, ts storage.TenantStore) (BatchResult, error) {
	result := BatchResult{}

	clients, err := ts.ListClientsForSync(ctx, false)
	if err != nil {
		return result, err
	}
	for _, client := range clients {
		if o.SyncClient(ctx, ts, client.ID).Success {
			result.ClientsSynced++
		}
	}

	invoices, err := ts.ListInvoicesForSync(ctx, false)
	if err != nil {
		return result, err
	}
	for _, invoice := range invoices {
		if o.SyncInvoice(ctx, ts, invoice.ID).Success {
			result.InvoicesSynced++
		}
	}

	o.log.Info().
		Str("tenant_id", ts.TenantID().String()).
		Int("clients_synced", result.ClientsSynced).
		Int("invoices_synced", result.InvoicesSynced).
		Msg("pending sync run complete")

	return result, nil
}

// RetryFailed re-syncs every client and invoice whose last sync errored
func (o *Orchestrator) RetryFailed(ctx context.Context, ts storage.TenantStore) (RetryResult, error) {
	result := RetryResult{}

	clients, err := ts.ListClientsForSync(ctx, true)
	if err != nil {
		return result, err
	}
	for _, client := range clients {
		if o.SyncClient(ctx, ts, client.ID).Success {
			result.ClientsRetried++
		}
	}

	invoices, err := ts.ListInvoicesForSync(ctx, true)
	if err != nil {
		return result, err
	}
	for _, invoice := range invoices {
		if o.SyncInvoice(ctx, ts, invoice.ID).Success {
			result.InvoicesRetried++
		}
	}

	return result, nil
}

func (o *Orchestrator) failClient(ctx context.Context, ts storage.TenantStore, clientID uuid.UUID, err error) Result {
	o.log.Warn().
		Str("tenant_id", ts.TenantID().String()).
		Str("client_id", clientID.String()).
		Err(err).
		Msg("client sync failed")

	if markErr := ts.MarkClientSyncError(ctx, clientID, err.Error()); markErr != nil {
		o.log.Error().Err(markErr).Str("client_id", clientID.String()).Msg("record client sync error")
	}
	return Result{Success: false, Error: err.Error()}
}

func (o *Orchestrator) failInvoice(ctx context.Context, ts storage.TenantStore, invoiceID uuid.UUID, err error) Result {
	o.log.Warn().
		Str("tenant_id", ts.TenantID().String()).
		Str("invoice_id", invoiceID.String()).
		Err(err).
		Msg("invoice sync failed")

	if markErr := ts.MarkInvoiceSyncError(ctx, invoiceID, err.Error()); markErr != nil {
		o.log.Error().Err(markErr).Str("invoice_id", invoiceID.String()).Msg("record invoice sync error")
	}
	return Result{Success: false, Error: err.Error()}
}

// contactFromClient maps a local client to a Xero contact payload
func contactFromClient(client *models.Client) *Contact {
	contact := &Contact{
		Name:          client.Name,
		EmailAddress:  client.Email,
		TaxNumber:     client.VATNumber,
		ContactStatus: "ACTIVE",
	}
	if client.XeroContactID != nil {
		contact.ContactID = *client.XeroContactID
	}
	return contact
}

// invoiceFromModel maps a local invoice to a Xero invoice payload.
// Local amounts are pence; Xero expects decimal pounds.
func invoiceFromModel(invoice *models.Invoice, xeroContactID string) *Invoice {
	out := &Invoice{
		Type:            "ACCREC",
		Contact:         &Contact{ContactID: xeroContactID},
		InvoiceNumber:   invoice.InvoiceNumber,
		Date:            invoice.IssueDate.Format("2006-01-02"),
		DueDate:         invoice.DueDate.Format("2006-01-02"),
		Status:          xeroInvoiceStatus(invoice.Status),
		LineAmountTypes: "Exclusive",
	}
	if invoice.XeroInvoiceID != nil {
		out.InvoiceID = *invoice.XeroInvoiceID
	}

	for _, line := range invoice.Lines {
		out.LineItems = append(out.LineItems, LineItem{
			Description: line.Description,
			Quantity:    float64(line.Quantity),
			UnitAmount:  float64(line.UnitAmount) / 100,
			TaxType:     line.TaxRate,
		})
	}
	if len(out.LineItems) == 0 {
		out.LineItems = []LineItem{{
			Description: "Professional services",
			Quantity:    1,
			UnitAmount:  float64(invoice.Subtotal) / 100,
		}}
	}
	return out
}

func xeroInvoiceStatus(status string) string {
	switch status {
	case models.InvoiceStatusDraft:
		return "DRAFT"
	case models.InvoiceStatusVoided:
		return "VOIDED"
	default:
		return "AUTHORISED"
	}
}
