package xero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/practicehub/practice-server/internal/config"
	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
	"github.com/practicehub/practice-server/pkg/crypto"
)

// refreshWindow is how close to expiry a token may get before it is
// refreshed ahead of use
const refreshWindow = 5 * time.Minute

// CredentialStore is the slice of the tenant store the credential
// manager needs. storage.TenantStore satisfies it.
type CredentialStore interface {
	IntegrationSettings(ctx context.Context, integrationType string) (*models.IntegrationSettings, error)
	SaveIntegrationSettings(ctx context.Context, settings *models.IntegrationSettings) error
}

// tokenResponse is the OAuth token endpoint response
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// CredentialManager loads, decrypts and transparently refreshes a
// tenant's Xero OAuth credentials
type CredentialManager struct {
	cfg        *config.XeroConfig
	key        []byte
	httpClient *http.Client
	log        zerolog.Logger
}

// NewCredentialManager creates a credential manager
func NewCredentialManager(cfg *config.XeroConfig, logger zerolog.Logger) (*CredentialManager, error) {
	key := []byte(cfg.EncryptionKey)
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("xero encryption key must be 16, 24 or 32 bytes, got %d", len(key))
	}

	return &CredentialManager{
		cfg:        cfg,
		key:        key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.With().Str("component", "xero-credentials").Logger(),
	}, nil
}

// GetCredentials returns the tenant's decrypted Xero credentials, refreshing
// them first when they are within the refresh window. Returns (nil, nil)
// when the tenant has no Xero connection or the connection is disabled.
func (m *CredentialManager) GetCredentials(ctx context.Context, store CredentialStore) (*models.IntegrationCredentials, error) {
	settings, err := store.IntegrationSettings(ctx, models.IntegrationTypeXero)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load integration settings: %w", err)
	}

	if !settings.Enabled {
		return nil, nil
	}

	creds, err := m.decrypt(settings.Credentials)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}

	if time.Until(creds.ExpiresAt) >= refreshWindow {
		return creds, nil
	}

	refreshed, err := m.refresh(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	// Persist before use so a crash after the refresh cannot strand the
	// old, now-invalidated refresh token.
	if err := m.SaveCredentials(ctx, store, settings, refreshed); err != nil {
		return nil, fmt.Errorf("persist refreshed credentials: %w", err)
	}

	m.log.Debug().Time("expires_at", refreshed.ExpiresAt).Msg("refreshed Xero token")
	return refreshed, nil
}

// SaveCredentials encrypts creds into settings and saves the row
func (m *CredentialManager) SaveCredentials(ctx context.Context, store CredentialStore, settings *models.IntegrationSettings, creds *models.IntegrationCredentials) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	blob, err := crypto.Encrypt(m.key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	settings.Credentials = blob
	return store.SaveIntegrationSettings(ctx, settings)
}

func (m *CredentialManager) decrypt(blob []byte) (*models.IntegrationCredentials, error) {
	plaintext, err := crypto.Decrypt(m.key, blob)
	if err != nil {
		return nil, err
	}

	creds := &models.IntegrationCredentials{}
	if err := json.Unmarshal(plaintext, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// refresh exchanges the stored refresh token for a new credential set
func (m *CredentialManager) refresh(ctx context.Context, creds *models.IntegrationCredentials) (*models.IntegrationCredentials, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.cfg.ClientID, m.cfg.ClientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	refreshed := &models.IntegrationCredentials{
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		ExpiresAt:        time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
		TokenType:        tok.TokenType,
		ExternalTenantID: creds.ExternalTenantID,
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = creds.RefreshToken
	}
	if refreshed.TokenType == "" {
		refreshed.TokenType = "Bearer"
	}
	return refreshed, nil
}
