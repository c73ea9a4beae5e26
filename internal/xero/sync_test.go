package xero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/practice-server/internal/config"
	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

// fakeXero is a minimal Xero accounting API that assigns IDs on create
type fakeXero struct {
	srv *httptest.Server

	contactPosts int32
	invoicePosts int32
	failContacts bool
	failInvoices bool
}

func newFakeXero() *fakeXero {
	f := &fakeXero{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Contacts":
			n := atomic.AddInt32(&f.contactPosts, 1)
			if f.failContacts {
				http.Error(w, "contact rejected", http.StatusBadRequest)
				return
			}
			var in contactsEnvelope
			json.NewDecoder(r.Body).Decode(&in)
			if in.Contacts[0].ContactID == "" {
				in.Contacts[0].ContactID = newResourceID("xc", n)
			}
			json.NewEncoder(w).Encode(in)
		case "/Invoices":
			n := atomic.AddInt32(&f.invoicePosts, 1)
			if f.failInvoices {
				http.Error(w, "invoice rejected", http.StatusBadRequest)
				return
			}
			var in invoicesEnvelope
			json.NewDecoder(r.Body).Decode(&in)
			if in.Invoices[0].InvoiceID == "" {
				in.Invoices[0].InvoiceID = newResourceID("xi", n)
			}
			json.NewEncoder(w).Encode(in)
		default:
			http.NotFound(w, r)
		}
	}))
	return f
}

func newResourceID(prefix string, n int32) string {
	return prefix + "-" + string(rune('0'+n))
}

func newTestOrchestrator(t *testing.T, f *fakeXero) (*Orchestrator, storage.TenantStore) {
	t.Helper()

	ts, _ := newTenantStore()
	cfg := &config.XeroConfig{BaseURL: f.srv.URL}
	mgr := newTestManager(t, cfg)
	connectTenant(t, mgr, ts, time.Hour)

	return NewOrchestrator(NewClient(cfg, mgr), zerolog.Nop()), ts
}

func seedClient(t *testing.T, ts storage.TenantStore, code string) *models.Client {
	t.Helper()

	client := &models.Client{
		ClientCode: code,
		Name:       "Acme Ltd",
		Type:       models.ClientTypeLimitedCompany,
		Status:     models.ClientStatusActive,
		Email:      "info@acme.co.uk",
		VATNumber:  "GB123456789",
	}
	require.NoError(t, ts.CreateClient(context.Background(), client))
	require.NoError(t, ts.MarkClientPendingSync(context.Background(), client.ID))
	return client
}

func TestSyncClient(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFakeXero()
		defer f.srv.Close()
		o, ts := newTestOrchestrator(t, f)
		client := seedClient(t, ts, "CL-001")

		res := o.SyncClient(ctx, ts, client.ID)
		assert.True(t, res.Success)
		assert.Empty(t, res.Error)

		stored, err := ts.GetClient(ctx, client.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.XeroContactID)
		assert.NotEmpty(t, *stored.XeroContactID)
		require.NotNil(t, stored.XeroSyncStatus)
		assert.Equal(t, models.SyncStatusSynced, *stored.XeroSyncStatus)
		assert.Nil(t, stored.XeroSyncError)
		assert.NotNil(t, stored.XeroLastSyncedAt)
	})

	t.Run("api failure is recorded, not raised", func(t *testing.T) {
		f := newFakeXero()
		defer f.srv.Close()
		f.failContacts = true
		o, ts := newTestOrchestrator(t, f)
		client := seedClient(t, ts, "CL-001")

		res := o.SyncClient(ctx, ts, client.ID)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "Xero API error: 400")

		stored, err := ts.GetClient(ctx, client.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.XeroSyncStatus)
		assert.Equal(t, models.SyncStatusError, *stored.XeroSyncStatus)
		require.NotNil(t, stored.XeroSyncError)
		assert.Contains(t, *stored.XeroSyncError, "contact rejected")
	})

	t.Run("unknown client", func(t *testing.T) {
		f := newFakeXero()
		defer f.srv.Close()
		o, ts := newTestOrchestrator(t, f)

		res := o.SyncClient(ctx, ts, uuid.New())
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
	})
}

func TestSyncInvoice(t *testing.T) {
	ctx := context.Background()

	newInvoice := func(t *testing.T, ts storage.TenantStore, clientID uuid.UUID) *models.Invoice {
		inv := &models.Invoice{
			ClientID:      clientID,
			InvoiceNumber: "INV-0001",
			IssueDate:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			DueDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Subtotal:      150000,
			TaxAmount:     30000,
			Total:         180000,
			Status:        models.InvoiceStatusSent,
			Lines: models.InvoiceLines{
				{Description: "Year end accounts", Quantity: 1, UnitAmount: 150000},
			},
		}
		require.NoError(t, ts.CreateInvoice(ctx, inv))
		require.NoError(t, ts.MarkInvoicePendingSync(ctx, inv.ID))
		return inv
	}

	t.Run("unsynced client is synced first", func(t *testing.T) {
		f := newFakeXero()
		defer f.srv.Close()
		o, ts := newTestOrchestrator(t, f)
		client := seedClient(t, ts, "CL-001")
		inv := newInvoice(t, ts, client.ID)

		res := o.SyncInvoice(ctx, ts, inv.ID)
		assert.True(t, res.Success)
		assert.EqualValues(t, 1, f.contactPosts)
		assert.EqualValues(t, 1, f.invoicePosts)

		storedClient, err := ts.GetClient(ctx, client.ID)
		require.NoError(t, err)
		assert.NotNil(t, storedClient.XeroContactID)

		storedInv, err := ts.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.NotNil(t, storedInv.XeroInvoiceID)
		require.NotNil(t, storedInv.XeroSyncStatus)
		assert.Equal(t, models.SyncStatusSynced, *storedInv.XeroSyncStatus)
	})

	t.Run("synced client is not re-synced", func(t *testing.T) {
		f := newFakeXero()
		defer f.srv.Close()
		o, ts := newTestOrchestrator(t, f)
		client := seedClient(t, ts, "CL-001")
		require.NoError(t, ts.MarkClientSynced(ctx, client.ID, "xc-existing"))
		inv := newInvoice(t, ts, client.ID)

		res := o.SyncInvoice(ctx, ts, inv.ID)
		assert.True(t, res.Success)
		assert.EqualValues(t, 0, f.contactPosts)
		assert.EqualValues(t, 1, f.invoicePosts)
	})

	t.Run("cascade failure marks the invoice", func(t *testing.T) {
		f := newFakeXero()
		defer f.srv.Close()
		f.failContacts = true
		o, ts := newTestOrchestrator(t, f)
		client := seedClient(t, ts, "CL-001")
		inv := newInvoice(t, ts, client.ID)

		res := o.SyncInvoice(ctx, ts, inv.ID)
		assert.False(t, res.Success)
		assert.EqualValues(t, 0, f.invoicePosts)

		storedInv, err := ts.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.NotNil(t, storedInv.XeroSyncStatus)
		assert.Equal(t, models.SyncStatusError, *storedInv.XeroSyncStatus)

		storedClient, err := ts.GetClient(ctx, client.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusError, *storedClient.XeroSyncStatus)
	})
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()

	f := newFakeXero()
	defer f.srv.Close()
	o, ts := newTestOrchestrator(t, f)

	seedClient(t, ts, "CL-001")
	seedClient(t, ts, "CL-002")
	synced := seedClient(t, ts, "CL-003")
	require.NoError(t, ts.MarkClientSynced(ctx, synced.ID, "xc-done"))

	result, err := o.ProcessPending(ctx, ts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ClientsSynced)
	assert.Equal(t, 0, result.InvoicesSynced)

	// Everything pending was synced, a second run finds nothing
	result, err = o.ProcessPending(ctx, ts)
	require.NoError(t, err)
	assert.Zero(t, result.ClientsSynced)
}

func TestProcessPendingIsolatesFailures(t *testing.T) {
	ctx := context.Background()

	f := newFakeXero()
	defer f.srv.Close()
	f.failContacts = true
	o, ts := newTestOrchestrator(t, f)

	seedClient(t, ts, "CL-001")
	seedClient(t, ts, "CL-002")

	result, err := o.ProcessPending(ctx, ts)
	require.NoError(t, err, "record failures must not abort the batch")
	assert.Zero(t, result.ClientsSynced)

	failed, err := ts.ListClientsForSync(ctx, true)
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestRetryFailed(t *testing.T) {
	ctx := context.Background()

	f := newFakeXero()
	defer f.srv.Close()
	o, ts := newTestOrchestrator(t, f)

	failed := seedClient(t, ts, "CL-001")
	require.NoError(t, ts.MarkClientSyncError(ctx, failed.ID, "boom"))
	pending := seedClient(t, ts, "CL-002")

	result, err := o.RetryFailed(ctx, ts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ClientsRetried)

	stored, err := ts.GetClient(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, *stored.XeroSyncStatus)

	// The pending client was not part of the retry run
	stored, err = ts.GetClient(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, *stored.XeroSyncStatus)
}

func TestInvoiceFromModel(t *testing.T) {
	inv := &models.Invoice{
		InvoiceNumber: "INV-0042",
		IssueDate:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:      150000,
		Status:        models.InvoiceStatusDraft,
		Lines: models.InvoiceLines{
			{Description: "Bookkeeping", Quantity: 3, UnitAmount: 12550, TaxRate: "OUTPUT2"},
		},
	}

	out := invoiceFromModel(inv, "xc-9")
	assert.Equal(t, "ACCREC", out.Type)
	assert.Equal(t, "xc-9", out.Contact.ContactID)
	assert.Equal(t, "2026-02-01", out.Date)
	assert.Equal(t, "2026-03-01", out.DueDate)
	assert.Equal(t, "DRAFT", out.Status)
	assert.Equal(t, "Exclusive", out.LineAmountTypes)
	require.Len(t, out.LineItems, 1)
	assert.Equal(t, 3.0, out.LineItems[0].Quantity)
	assert.Equal(t, 125.50, out.LineItems[0].UnitAmount)
	assert.Equal(t, "OUTPUT2", out.LineItems[0].TaxType)
}

func TestInvoiceFromModelDefaultLine(t *testing.T) {
	inv := &models.Invoice{
		InvoiceNumber: "INV-0042",
		IssueDate:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:      99900,
		Status:        models.InvoiceStatusSent,
	}

	out := invoiceFromModel(inv, "xc-9")
	assert.Equal(t, "AUTHORISED", out.Status)
	require.Len(t, out.LineItems, 1)
	assert.Equal(t, "Professional services", out.LineItems[0].Description)
	assert.Equal(t, 999.0, out.LineItems[0].UnitAmount)
}
