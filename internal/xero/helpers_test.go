package xero

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/practice-server/internal/config"
	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, cfg *config.XeroConfig) *CredentialManager {
	t.Helper()

	if cfg.EncryptionKey == "" {
		cfg.EncryptionKey = testEncryptionKey
	}
	mgr, err := NewCredentialManager(cfg, zerolog.Nop())
	require.NoError(t, err)
	return mgr
}

// connectTenant stores an enabled Xero connection with the given token
// lifetime, the way the connect endpoint would
func connectTenant(t *testing.T, mgr *CredentialManager, ts storage.TenantStore, ttl time.Duration) *models.IntegrationCredentials {
	t.Helper()

	creds := &models.IntegrationCredentials{
		AccessToken:      "access-0",
		RefreshToken:     "refresh-0",
		ExpiresAt:        time.Now().Add(ttl),
		TokenType:        "Bearer",
		ExternalTenantID: "xero-org-1",
	}
	settings := &models.IntegrationSettings{
		IntegrationType: models.IntegrationTypeXero,
		Enabled:         true,
		SyncStatus:      "connected",
	}
	require.NoError(t, mgr.SaveCredentials(context.Background(), ts, settings, creds))
	return creds
}

func newTenantStore() (storage.TenantStore, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return store.ForTenant(uuid.New()), store
}
