package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

type invoiceLineRequest struct {
	Description string `json:"description" validate:"required"`
	Quantity    int    `json:"quantity" validate:"min=1"`
	// UnitAmount is in pence
	UnitAmount int64  `json:"unit_amount" validate:"min=0"`
	TaxRate    string `json:"tax_rate"`
}

type invoiceRequest struct {
	ClientID      string               `json:"client_id" validate:"required"`
	InvoiceNumber string               `json:"invoice_number" validate:"required,max=50"`
	IssueDate     string               `json:"issue_date" validate:"required"`
	DueDate       string               `json:"due_date" validate:"required"`
	TaxAmount     int64                `json:"tax_amount" validate:"min=0"`
	Status        string               `json:"status" validate:"oneof=draft sent paid voided"`
	Lines         []invoiceLineRequest `json:"lines"`
}

// HandleListInvoices lists the tenant's invoices, optionally filtered
// by client
func (s *RESTServer) HandleListInvoices(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	var clientID *uuid.UUID
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid client_id")
			return
		}
		clientID = &id
	}

	invoices, total, err := ts.ListInvoices(r.Context(), clientID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"total":    total,
	})
}

// HandleCreateInvoice creates an invoice
func (s *RESTServer) HandleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoice, errMsg := invoiceFromRequest(&req)
	if errMsg != "" {
		s.respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	// The client must exist inside this tenant
	if _, err := ts.GetClient(r.Context(), invoice.ClientID); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusBadRequest, "client not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := ts.CreateInvoice(r.Context(), invoice); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "invoice number already in use")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_ = ts.MarkInvoicePendingSync(r.Context(), invoice.ID)
	s.requestSync(r, ts.TenantID())
	s.invalidateSummary(ts.TenantID())

	created, err := ts.GetInvoice(r.Context(), invoice.ID)
	if err == nil {
		invoice = created
	}
	s.respondJSON(w, http.StatusCreated, invoice)
}

// HandleGetInvoice gets an invoice
func (s *RESTServer) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	invoice, err := ts.GetInvoice(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "invoice not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, invoice)
}

// HandleUpdateInvoice updates an invoice and flags it for re-sync
func (s *RESTServer) HandleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoice, err := ts.GetInvoice(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "invoice not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, errMsg := invoiceFromRequest(&req)
	if errMsg != "" {
		s.respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	invoice.InvoiceNumber = updated.InvoiceNumber
	invoice.IssueDate = updated.IssueDate
	invoice.DueDate = updated.DueDate
	invoice.Subtotal = updated.Subtotal
	invoice.TaxAmount = updated.TaxAmount
	invoice.Total = updated.Total
	invoice.Status = updated.Status
	invoice.Lines = updated.Lines

	if err := ts.UpdateInvoice(r.Context(), invoice); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_ = ts.MarkInvoicePendingSync(r.Context(), invoice.ID)
	s.requestSync(r, ts.TenantID())

	refreshed, err := ts.GetInvoice(r.Context(), invoice.ID)
	if err == nil {
		invoice = refreshed
	}
	s.respondJSON(w, http.StatusOK, invoice)
}

// HandleSyncInvoice pushes one invoice to Xero immediately
func (s *RESTServer) HandleSyncInvoice(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	result := s.sync.SyncInvoice(r.Context(), ts, id)
	s.invalidateSummary(ts.TenantID())
	s.respondJSON(w, http.StatusOK, result)
}

// invoiceFromRequest maps the payload and derives the totals from the
// line items
func invoiceFromRequest(req *invoiceRequest) (*models.Invoice, string) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, "invalid client_id"
	}

	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		return nil, "issue_date must be YYYY-MM-DD"
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, "due_date must be YYYY-MM-DD"
	}
	if dueDate.Before(issueDate) {
		return nil, "due_date must not be before issue_date"
	}

	invoice := &models.Invoice{
		ClientID:      clientID,
		InvoiceNumber: req.InvoiceNumber,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		TaxAmount:     req.TaxAmount,
		Status:        req.Status,
	}
	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusDraft
	}

	for _, line := range req.Lines {
		invoice.Lines = append(invoice.Lines, models.InvoiceLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitAmount:  line.UnitAmount,
			TaxRate:     line.TaxRate,
		})
		invoice.Subtotal += int64(line.Quantity) * line.UnitAmount
	}
	invoice.Total = invoice.Subtotal + invoice.TaxAmount

	return invoice, ""
}
