package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/practice-server/internal/config"
	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
	"github.com/practicehub/practice-server/internal/xero"
)

// testEnv wires a full server over the in-memory store
type testEnv struct {
	s     *RESTServer
	store *storage.MemoryStore

	tenant *models.Tenant
	user   *models.User
	token  string

	admin      *models.User
	adminToken string
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithXero(t, "http://xero.invalid")
}

func newTestEnvWithXero(t *testing.T, xeroBaseURL string) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Name = "practice-server"
	cfg.Server.Version = "test"
	cfg.JWT = config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
	cfg.Import.MaxRows = 100
	cfg.Import.MaxFileSize = 1 << 20
	cfg.Xero = config.XeroConfig{
		BaseURL:       xeroBaseURL,
		TokenURL:      xeroBaseURL + "/token",
		EncryptionKey: "0123456789abcdef0123456789abcdef",
	}

	store := storage.NewMemoryStore()

	creds, err := xero.NewCredentialManager(&cfg.Xero, zerolog.Nop())
	require.NoError(t, err)
	orchestrator := xero.NewOrchestrator(xero.NewClient(&cfg.Xero, creds), zerolog.Nop())

	env := &testEnv{
		s:     NewRESTServer(cfg, store, orchestrator, creds, nil),
		store: store,
	}

	ctx := context.Background()

	env.tenant = &models.Tenant{Name: "Smith & Co", Slug: "smith-co"}
	require.NoError(t, store.CreateTenant(ctx, env.tenant))

	env.user = &models.User{
		Email:     "jane@smith.co.uk",
		FirstName: "Jane",
		LastName:  "Smith",
		IsActive:  true,
		TenantID:  &env.tenant.ID,
		Settings:  models.Variables{"password": "hunter22pass"},
	}
	require.NoError(t, store.CreateUser(ctx, env.user))
	env.token = mintToken(t, env.s, env.user)

	env.admin = &models.User{
		Email:    "root@platform.io",
		IsAdmin:  true,
		IsActive: true,
	}
	require.NoError(t, store.CreateUser(ctx, env.admin))
	env.adminToken = mintToken(t, env.s, env.admin)

	return env
}

func mintToken(t *testing.T, s *RESTServer, user *models.User) string {
	t.Helper()

	access, _, err := s.auth.GenerateTokenPair(user)
	require.NoError(t, err)
	return access
}

// request runs one request through the full router and middleware stack
func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

// ts returns the primary tenant's store view for direct seeding
func (e *testEnv) ts() storage.TenantStore {
	return e.store.ForTenant(e.tenant.ID)
}

func otherTenantToken(t *testing.T, e *testEnv) string {
	t.Helper()

	other := &models.Tenant{Name: "Other LLP", Slug: "other-llp"}
	require.NoError(t, e.store.CreateTenant(context.Background(), other))

	user := &models.User{
		Email:    "bob@other.co.uk",
		IsActive: true,
		TenantID: &other.ID,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return mintToken(t, e.s, user)
}
