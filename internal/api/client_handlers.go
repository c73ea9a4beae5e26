package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/importer"
	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

// clientRequest is the shared create/update payload
type clientRequest struct {
	Name               string `json:"name" validate:"required,min=2,max=200"`
	Type               string `json:"type" validate:"required"`
	Status             string `json:"status"`
	Email              string `json:"email" validate:"email"`
	Phone              string `json:"phone"`
	VATNumber          string `json:"vat_number"`
	RegistrationNumber string `json:"registration_number" validate:"max=8"`
	AddressLine1       string `json:"address_line1"`
	City               string `json:"city"`
	Postcode           string `json:"postcode"`
	Country            string `json:"country"`
	ManagerID          string `json:"manager_id"`
}

// HandleListClients lists the tenant's clients
func (s *RESTServer) HandleListClients(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	clients, total, err := ts.ListClients(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"clients": clients,
		"total":   total,
	})
}

// HandleCreateClient creates a client
func (s *RESTServer) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, errMsg := clientFromRequest(&req)
	if errMsg != "" {
		s.respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	code, err := importer.NextClientCode(r.Context(), ts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	client.ClientCode = code

	if err := ts.CreateClient(r.Context(), client); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "client code already in use")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// New clients join the next sync run
	_ = ts.MarkClientPendingSync(r.Context(), client.ID)
	s.requestSync(r, ts.TenantID())
	s.invalidateSummary(ts.TenantID())

	created, err := ts.GetClient(r.Context(), client.ID)
	if err == nil {
		client = created
	}
	s.respondJSON(w, http.StatusCreated, client)
}

// HandleGetClient gets a client
func (s *RESTServer) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	client, err := ts.GetClient(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "client not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, client)
}

// HandleUpdateClient updates a client. Edits invalidate the previous
// Xero sync, so the row is flagged pending again.
func (s *RESTServer) HandleUpdateClient(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := ts.GetClient(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "client not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, errMsg := clientFromRequest(&req)
	if errMsg != "" {
		s.respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	client.Name = updated.Name
	client.Type = updated.Type
	client.Status = updated.Status
	client.Email = updated.Email
	client.Phone = updated.Phone
	client.VATNumber = updated.VATNumber
	client.RegistrationNumber = updated.RegistrationNumber
	client.AddressLine1 = updated.AddressLine1
	client.City = updated.City
	client.Postcode = updated.Postcode
	client.Country = updated.Country
	client.ManagerID = updated.ManagerID

	if err := ts.UpdateClient(r.Context(), client); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_ = ts.MarkClientPendingSync(r.Context(), client.ID)
	s.requestSync(r, ts.TenantID())
	s.invalidateSummary(ts.TenantID())

	refreshed, err := ts.GetClient(r.Context(), client.ID)
	if err == nil {
		client = refreshed
	}
	s.respondJSON(w, http.StatusOK, client)
}

// HandleSyncClient pushes one client to Xero immediately
func (s *RESTServer) HandleSyncClient(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	result := s.sync.SyncClient(r.Context(), ts, id)
	s.invalidateSummary(ts.TenantID())
	s.respondJSON(w, http.StatusOK, result)
}

// HandleClientSummary returns the dashboard rollup, cached for a short
// window per tenant
func (s *RESTServer) HandleClientSummary(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	key := summaryCacheKey(ts.TenantID())
	if cached, ok := s.cache.Get(key); ok {
		s.respondJSON(w, http.StatusOK, cached)
		return
	}

	summary, err := ts.ClientSummary(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.cache.Set(key, summary)
	s.respondJSON(w, http.StatusOK, summary)
}

func summaryCacheKey(tenantID uuid.UUID) string {
	return "client-summary:" + tenantID.String()
}

func (s *RESTServer) invalidateSummary(tenantID uuid.UUID) {
	s.cache.Delete(summaryCacheKey(tenantID))
}

// clientFromRequest maps and normalizes the request payload. Returns a
// message instead of a client when an enum value is unknown.
func clientFromRequest(req *clientRequest) (*models.Client, string) {
	if !models.ValidClientType(req.Type) {
		return nil, "unknown client type"
	}
	if req.Status == "" {
		req.Status = models.ClientStatusActive
	}
	if !models.ValidClientStatus(req.Status) {
		return nil, "unknown client status"
	}

	client := &models.Client{
		Name:               req.Name,
		Type:               req.Type,
		Status:             req.Status,
		Email:              strings.ToLower(req.Email),
		Phone:              req.Phone,
		VATNumber:          strings.ToUpper(strings.ReplaceAll(req.VATNumber, " ", "")),
		RegistrationNumber: strings.ToUpper(req.RegistrationNumber),
		AddressLine1:       req.AddressLine1,
		City:               req.City,
		Postcode:           req.Postcode,
		Country:            req.Country,
	}
	if client.Country == "" {
		client.Country = "United Kingdom"
	}

	if req.ManagerID != "" {
		managerID, err := uuid.Parse(req.ManagerID)
		if err != nil {
			return nil, "invalid manager_id"
		}
		client.ManagerID = &managerID
	}

	return client, ""
}
