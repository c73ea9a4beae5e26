package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

// HandleGetXeroIntegration returns the tenant's Xero connection state.
// Credentials never leave the server; only metadata is reported.
func (s *RESTServer) HandleGetXeroIntegration(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	settings, err := ts.IntegrationSettings(r.Context(), models.IntegrationTypeXero)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondJSON(w, http.StatusOK, map[string]interface{}{
				"connected": false,
			})
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"connected":   settings.Enabled,
		"sync_status": settings.SyncStatus,
		"updated_at":  settings.UpdatedAt,
	})
}

// HandleConnectXero stores the OAuth tokens obtained from the Xero
// consent flow and enables the integration
func (s *RESTServer) HandleConnectXero(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	var req struct {
		AccessToken  string `json:"access_token" validate:"required"`
		RefreshToken string `json:"refresh_token" validate:"required"`
		ExpiresIn    int    `json:"expires_in" validate:"min=1"`
		TokenType    string `json:"token_type"`
		XeroTenantID string `json:"xero_tenant_id" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := ts.IntegrationSettings(r.Context(), models.IntegrationTypeXero)
	if err != nil {
		if err != storage.ErrNotFound {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		settings = &models.IntegrationSettings{
			IntegrationType: models.IntegrationTypeXero,
		}
	}
	settings.Enabled = true
	settings.SyncStatus = "connected"

	creds := &models.IntegrationCredentials{
		AccessToken:      req.AccessToken,
		RefreshToken:     req.RefreshToken,
		ExpiresAt:        time.Now().Add(time.Duration(req.ExpiresIn) * time.Second),
		TokenType:        req.TokenType,
		ExternalTenantID: req.XeroTenantID,
	}
	if creds.TokenType == "" {
		creds.TokenType = "Bearer"
	}

	if err := s.creds.SaveCredentials(r.Context(), ts, settings, creds); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("tenant_id", ts.TenantID().String()).Msg("Xero integration connected")

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"connected": true,
	})
}

// HandleDisconnectXero disables the integration but keeps sync history
// on the rows
func (s *RESTServer) HandleDisconnectXero(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	settings, err := ts.IntegrationSettings(r.Context(), models.IntegrationTypeXero)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "integration not connected")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	settings.Enabled = false
	settings.SyncStatus = "disconnected"

	if err := ts.SaveIntegrationSettings(r.Context(), settings); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"connected": false,
	})
}

// HandleProcessPendingSyncs syncs every pending client and invoice now
func (s *RESTServer) HandleProcessPendingSyncs(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	result, err := s.sync.ProcessPending(r.Context(), ts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.invalidateSummary(ts.TenantID())
	s.respondJSON(w, http.StatusOK, result)
}

// HandleRetryFailedSyncs re-syncs every record whose last sync errored
func (s *RESTServer) HandleRetryFailedSyncs(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	result, err := s.sync.RetryFailed(r.Context(), ts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.invalidateSummary(ts.TenantID())
	s.respondJSON(w, http.StatusOK, result)
}

// requestSync asks the sync worker to pick up the tenant's pending
// records. Without a NATS connection the records simply wait for the
// next explicit sync call.
func (s *RESTServer) requestSync(r *http.Request, tenantID uuid.UUID) {
	if s.nats == nil {
		return
	}

	subject := fmt.Sprintf("sync.xero.%s.requested", tenantID)
	if err := s.nats.Publish(subject, nil); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("publish sync request")
	}
}
