package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHighlightMentions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/mentions/highlight", env.token, map[string]string{
		"text": "Please chase @[Jane Smith] about <this>",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp["html"], `<span class="mention">@Jane Smith</span>`)
	assert.Contains(t, resp["html"], "&lt;this&gt;")
}

func TestHandleExtractMentions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/mentions/extract", env.token, map[string]string{
		"text": "cc @[Jane Smith] and @[Nobody Here]",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserIDs []string `json:"user_ids"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.UserIDs, 1)
	assert.Equal(t, env.user.ID.String(), resp.UserIDs[0])
}

func TestHandleExtractMentionsScopedToTenant(t *testing.T) {
	env := newTestEnv(t)
	otherToken := otherTenantToken(t, env)

	rec := env.request(t, http.MethodPost, "/api/v1/mentions/extract", otherToken, map[string]string{
		"text": "cc @[Jane Smith]",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserIDs []string `json:"user_ids"`
	}
	decodeBody(t, rec, &resp)
	assert.Empty(t, resp.UserIDs)
}
