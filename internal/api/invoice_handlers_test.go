package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/practice-server/internal/models"
)

func seedAPIClient(t *testing.T, env *testEnv, code string) *models.Client {
	t.Helper()

	client := &models.Client{
		Name:       "Acme Ltd " + code,
		Type:       models.ClientTypeLimitedCompany,
		Status:     models.ClientStatusActive,
		ClientCode: code,
	}
	require.NoError(t, env.ts().CreateClient(context.Background(), client))
	return client
}

func TestHandleCreateInvoice(t *testing.T) {
	env := newTestEnv(t)
	client := seedAPIClient(t, env, "CL-001")

	rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
		"client_id":      client.ID.String(),
		"invoice_number": "INV-1001",
		"issue_date":     "2026-03-01",
		"due_date":       "2026-03-31",
		"tax_amount":     2510,
		"lines": []map[string]interface{}{
			{"description": "Year end accounts", "quantity": 1, "unit_amount": 12550, "tax_rate": "standard"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var invoice models.Invoice
	decodeBody(t, rec, &invoice)
	assert.Equal(t, "INV-1001", invoice.InvoiceNumber)
	assert.Equal(t, models.InvoiceStatusDraft, invoice.Status)
	assert.EqualValues(t, 12550, invoice.Subtotal)
	assert.EqualValues(t, 15060, invoice.Total)
	require.NotNil(t, invoice.XeroSyncStatus)
	assert.Equal(t, models.SyncStatusPending, *invoice.XeroSyncStatus)

	t.Run("duplicate number", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
			"client_id":      client.ID.String(),
			"invoice_number": "INV-1001",
			"issue_date":     "2026-03-01",
			"due_date":       "2026-03-31",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleCreateInvoiceValidation(t *testing.T) {
	env := newTestEnv(t)
	client := seedAPIClient(t, env, "CL-001")

	t.Run("unknown client", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
			"client_id":      uuid.New().String(),
			"invoice_number": "INV-1001",
			"issue_date":     "2026-03-01",
			"due_date":       "2026-03-31",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]string
		decodeBody(t, rec, &resp)
		assert.Contains(t, resp["error"], "client not found")
	})

	t.Run("due before issue", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
			"client_id":      client.ID.String(),
			"invoice_number": "INV-1002",
			"issue_date":     "2026-03-31",
			"due_date":       "2026-03-01",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]string
		decodeBody(t, rec, &resp)
		assert.Contains(t, resp["error"], "due_date")
	})

	t.Run("bad date format", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
			"client_id":      client.ID.String(),
			"invoice_number": "INV-1003",
			"issue_date":     "01/03/2026",
			"due_date":       "2026-03-31",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
			"client_id":      client.ID.String(),
			"invoice_number": "INV-1004",
			"issue_date":     "2026-03-01",
			"due_date":       "2026-03-31",
			"status":         "overdue",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleListInvoicesByClient(t *testing.T) {
	env := newTestEnv(t)
	first := seedAPIClient(t, env, "CL-001")
	second := seedAPIClient(t, env, "CL-002")

	for i, client := range []*models.Client{first, first, second} {
		rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
			"client_id":      client.ID.String(),
			"invoice_number": fmt.Sprintf("INV-%d", 1000+i),
			"issue_date":     "2026-03-01",
			"due_date":       "2026-03-31",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var resp struct {
		Invoices []models.Invoice `json:"invoices"`
		Total    int64            `json:"total"`
	}

	rec := env.request(t, http.MethodGet, "/api/v1/invoices/", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.EqualValues(t, 3, resp.Total)

	rec = env.request(t, http.MethodGet, "/api/v1/invoices/?client_id="+first.ID.String(), env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.EqualValues(t, 2, resp.Total)
	for _, invoice := range resp.Invoices {
		assert.Equal(t, first.ID, invoice.ClientID)
	}
}

func TestHandleGetInvoiceCrossTenant(t *testing.T) {
	env := newTestEnv(t)
	client := seedAPIClient(t, env, "CL-001")

	rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
		"client_id":      client.ID.String(),
		"invoice_number": "INV-1001",
		"issue_date":     "2026-03-01",
		"due_date":       "2026-03-31",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var invoice models.Invoice
	decodeBody(t, rec, &invoice)

	otherToken := otherTenantToken(t, env)
	rec = env.request(t, http.MethodGet, "/api/v1/invoices/"+invoice.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpdateInvoiceFlagsResync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := seedAPIClient(t, env, "CL-001")

	rec := env.request(t, http.MethodPost, "/api/v1/invoices/", env.token, map[string]interface{}{
		"client_id":      client.ID.String(),
		"invoice_number": "INV-1001",
		"issue_date":     "2026-03-01",
		"due_date":       "2026-03-31",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var invoice models.Invoice
	decodeBody(t, rec, &invoice)
	require.NoError(t, env.ts().MarkInvoiceSynced(ctx, invoice.ID, "xi-1"))

	rec = env.request(t, http.MethodPut, "/api/v1/invoices/"+invoice.ID.String(), env.token, map[string]interface{}{
		"client_id":      client.ID.String(),
		"invoice_number": "INV-1001",
		"issue_date":     "2026-03-01",
		"due_date":       "2026-04-30",
		"status":         "sent",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Invoice
	decodeBody(t, rec, &updated)
	assert.Equal(t, models.InvoiceStatusSent, updated.Status)
	require.NotNil(t, updated.XeroSyncStatus)
	assert.Equal(t, models.SyncStatusPending, *updated.XeroSyncStatus)
}
