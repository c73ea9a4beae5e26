package api

import (
	"encoding/json"
	"net/http"

	"github.com/practicehub/practice-server/pkg/mention"
)

// HandleHighlightMentions renders a note's text as mention-highlighted,
// escaped HTML
func (s *RESTServer) HandleHighlightMentions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"html": mention.Highlight(req.Text),
	})
}

// HandleExtractMentions resolves a note's mentions against the tenant's
// users and returns the mentioned user ids
func (s *RESTServer) HandleExtractMentions(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	users, err := ts.ListTenantUsers(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	refs := make([]mention.User, 0, len(users))
	for _, u := range users {
		refs = append(refs, mention.User{
			ID:       u.ID,
			FullName: u.FullName(),
			Email:    u.Email,
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_ids": mention.ExtractUserIDs(req.Text, refs),
	})
}
