package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/practicehub/practice-server/internal/importer"
	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

type leadRequest struct {
	Name   string `json:"name" validate:"required,min=2,max=200"`
	Email  string `json:"email" validate:"email"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
	Status string `json:"status" validate:"oneof=new contacted qualified converted lost"`
	Notes  string `json:"notes"`
}

// HandleListLeads lists the tenant's leads
func (s *RESTServer) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	leads, total, err := ts.ListLeads(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"total": total,
	})
}

// HandleCreateLead creates a lead
func (s *RESTServer) HandleCreateLead(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}
	s.createLead(w, r, ts)
}

// HandleCreatePublicLead accepts a lead from an unauthenticated website
// enquiry form. The tenant is addressed by slug.
func (s *RESTServer) HandleCreatePublicLead(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("tenant")
	if slug == "" {
		s.respondError(w, http.StatusBadRequest, "tenant query parameter is required")
		return
	}

	tenant, err := s.store.GetTenantBySlug(r.Context(), slug)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "unknown tenant")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !tenant.IsActive {
		s.respondError(w, http.StatusNotFound, "unknown tenant")
		return
	}

	s.createLead(w, r, s.store.ForTenant(tenant.ID))
}

func (s *RESTServer) createLead(w http.ResponseWriter, r *http.Request, ts storage.TenantStore) {
	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lead := &models.Lead{
		Name:   req.Name,
		Email:  strings.ToLower(req.Email),
		Phone:  req.Phone,
		Source: req.Source,
		Status: req.Status,
		Notes:  req.Notes,
	}

	if err := ts.CreateLead(r.Context(), lead); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, lead)
}

// HandleGetLead gets a lead
func (s *RESTServer) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	lead, err := ts.GetLead(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "lead not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, lead)
}

// HandleUpdateLead updates a lead
func (s *RESTServer) HandleUpdateLead(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lead, err := ts.GetLead(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "lead not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lead.Name = req.Name
	lead.Email = strings.ToLower(req.Email)
	lead.Phone = req.Phone
	lead.Source = req.Source
	if req.Status != "" {
		lead.Status = req.Status
	}
	lead.Notes = req.Notes

	if err := ts.UpdateLead(r.Context(), lead); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, lead)
}

// HandleConvertLead converts a lead into a client. The client insert,
// lead update and onboarding task rows commit or roll back together.
func (s *RESTServer) HandleConvertLead(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	var req struct {
		ClientType string `json:"client_type" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !models.ValidClientType(req.ClientType) {
		s.respondError(w, http.StatusBadRequest, "unknown client type")
		return
	}

	lead, err := ts.GetLead(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "lead not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lead.Status == models.LeadStatusConverted {
		s.respondError(w, http.StatusConflict, "lead is already converted")
		return
	}

	tx, err := s.store.BeginTx(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	txTenant := tx.ForTenant(ts.TenantID())

	code, err := importer.NextClientCode(r.Context(), txTenant)
	if err != nil {
		tx.Rollback()
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	client := &models.Client{
		ClientCode: code,
		Name:       lead.Name,
		Type:       req.ClientType,
		Status:     models.ClientStatusActive,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Country:    "United Kingdom",
	}
	if err := txTenant.CreateClient(r.Context(), client); err != nil {
		tx.Rollback()
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lead.Status = models.LeadStatusConverted
	lead.ConvertedClientID = &client.ID
	if err := txTenant.UpdateLead(r.Context(), lead); err != nil {
		tx.Rollback()
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for i, title := range models.DefaultOnboardingTitles {
		task := &models.OnboardingTask{
			ClientID:  client.ID,
			Title:     title,
			SortOrder: i,
		}
		if err := txTenant.CreateOnboardingTask(r.Context(), task); err != nil {
			tx.Rollback()
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_ = ts.MarkClientPendingSync(r.Context(), client.ID)
	s.requestSync(r, ts.TenantID())
	s.invalidateSummary(ts.TenantID())

	log.Info().
		Str("tenant_id", ts.TenantID().String()).
		Str("lead_id", lead.ID.String()).
		Str("client_id", client.ID.String()).
		Msg("lead converted to client")

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"lead":   lead,
		"client": client,
	})
}
