package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/practice-server/internal/config"
	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

func newTestManager(ttl time.Duration) (*JWTManager, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	cfg := &config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  ttl,
		RefreshTokenTTL: 24 * time.Hour,
	}
	return NewJWTManager(cfg, store), store
}

func newTestUser(t *testing.T, store *storage.MemoryStore, active bool) *models.User {
	t.Helper()

	tenantID := uuid.New()
	user := &models.User{
		Email:     "jane@firm.co.uk",
		FirstName: "Jane",
		LastName:  "Smith",
		IsActive:  active,
		TenantID:  &tenantID,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestGenerateAndValidateToken(t *testing.T) {
	mgr, store := newTestManager(15 * time.Minute)
	user := newTestUser(t, store, true)

	access, refresh, err := mgr.GenerateTokenPair(user)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	claims, err := mgr.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.False(t, claims.IsAdmin)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, *user.TenantID, *claims.TenantID)
	assert.Equal(t, "practice-server", claims.Issuer)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	mgr, store := newTestManager(-time.Minute)
	user := newTestUser(t, store, true)

	access, _, err := mgr.GenerateTokenPair(user)
	require.NoError(t, err)

	_, err = mgr.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	mgr, store := newTestManager(15 * time.Minute)
	user := newTestUser(t, store, true)

	access, _, err := mgr.GenerateTokenPair(user)
	require.NoError(t, err)

	other := NewJWTManager(&config.JWTConfig{Secret: "different"}, store)
	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	mgr, _ := newTestManager(15 * time.Minute)
	_, err := mgr.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()
	mgr, store := newTestManager(15 * time.Minute)
	user := newTestUser(t, store, true)

	_, refresh, err := mgr.GenerateTokenPair(user)
	require.NoError(t, err)

	access2, refresh2, err := mgr.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, refresh2)

	claims, err := mgr.ValidateToken(access2)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRefreshTokenRejectsInactiveUser(t *testing.T) {
	ctx := context.Background()
	mgr, store := newTestManager(15 * time.Minute)
	user := newTestUser(t, store, true)

	_, refresh, err := mgr.GenerateTokenPair(user)
	require.NoError(t, err)

	user.IsActive = false
	require.NoError(t, store.UpdateUser(ctx, user))

	_, _, err = mgr.RefreshToken(ctx, refresh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inactive")
}

func TestRefreshTokenRejectsUnknownUser(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(15 * time.Minute)

	ghost := &models.User{ID: uuid.New(), Email: "ghost@firm.co.uk", IsActive: true}
	_, refresh, err := mgr.GenerateTokenPair(ghost)
	require.NoError(t, err)

	_, _, err = mgr.RefreshToken(ctx, refresh)
	assert.Error(t, err)
}
