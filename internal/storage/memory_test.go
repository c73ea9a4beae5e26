package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/practice-server/internal/models"
)

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tsA := store.ForTenant(uuid.New())
	tsB := store.ForTenant(uuid.New())

	clientA := &models.Client{ClientCode: "CL-001", Name: "A Ltd", Status: models.ClientStatusActive, Email: "a@a-ltd.co.uk"}
	require.NoError(t, tsA.CreateClient(ctx, clientA))

	// Tenant B cannot see, fetch or update tenant A's rows
	_, err := tsB.GetClient(ctx, clientA.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tsB.GetClientByEmail(ctx, clientA.Email)
	assert.ErrorIs(t, err, ErrNotFound)

	err = tsB.UpdateClient(ctx, clientA)
	assert.ErrorIs(t, err, ErrNotFound)

	err = tsB.MarkClientSynced(ctx, clientA.ID, "xc-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, total, err := tsB.ListClients(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	summary, err := tsB.ClientSummary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalClients)

	// And tenant A still sees its own
	got, err := tsA.GetClient(ctx, clientA.ID)
	require.NoError(t, err)
	assert.Equal(t, "A Ltd", got.Name)
}

func TestClientCodeUniquePerTenant(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tsA := store.ForTenant(uuid.New())
	tsB := store.ForTenant(uuid.New())

	require.NoError(t, tsA.CreateClient(ctx, &models.Client{ClientCode: "CL-001", Name: "A"}))

	err := tsA.CreateClient(ctx, &models.Client{ClientCode: "CL-001", Name: "B"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// The same code in another tenant is fine
	assert.NoError(t, tsB.CreateClient(ctx, &models.Client{ClientCode: "CL-001", Name: "C"}))
}

func TestLatestClientAndOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ts := store.ForTenant(uuid.New())

	for i := 1; i <= 3; i++ {
		require.NoError(t, ts.CreateClient(ctx, &models.Client{
			ClientCode: fmt.Sprintf("CL-%03d", i),
			Name:       fmt.Sprintf("Client %d", i),
		}))
	}

	latest, err := ts.LatestClient(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CL-003", latest.ClientCode)

	clients, total, err := ts.ListClients(ctx, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, "CL-003", clients[0].ClientCode)
	assert.Equal(t, "CL-001", clients[2].ClientCode)
}

func TestLatestClientEmpty(t *testing.T) {
	store := NewMemoryStore()
	ts := store.ForTenant(uuid.New())

	_, err := ts.LatestClient(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncStateTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ts := store.ForTenant(uuid.New())

	client := &models.Client{ClientCode: "CL-001", Name: "A"}
	require.NoError(t, ts.CreateClient(ctx, client))

	// Unset status counts as pending
	pending, err := ts.ListClientsForSync(ctx, false)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, ts.MarkClientSyncError(ctx, client.ID, "boom"))
	got, _ := ts.GetClient(ctx, client.ID)
	assert.Equal(t, models.SyncStatusError, *got.XeroSyncStatus)
	assert.Equal(t, "boom", *got.XeroSyncError)

	failed, err := ts.ListClientsForSync(ctx, true)
	require.NoError(t, err)
	assert.Len(t, failed, 1)

	require.NoError(t, ts.MarkClientSynced(ctx, client.ID, "xc-1"))
	got, _ = ts.GetClient(ctx, client.ID)
	assert.Equal(t, models.SyncStatusSynced, *got.XeroSyncStatus)
	assert.Equal(t, "xc-1", *got.XeroContactID)
	assert.Nil(t, got.XeroSyncError, "a successful sync clears the last error")
	assert.NotNil(t, got.XeroLastSyncedAt)

	// Synced rows appear in neither list
	pending, _ = ts.ListClientsForSync(ctx, false)
	assert.Empty(t, pending)
	failed, _ = ts.ListClientsForSync(ctx, true)
	assert.Empty(t, failed)

	require.NoError(t, ts.MarkClientPendingSync(ctx, client.ID))
	pending, _ = ts.ListClientsForSync(ctx, false)
	assert.Len(t, pending, 1)
}

func TestClientSummaryCounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ts := store.ForTenant(uuid.New())

	active := &models.Client{ClientCode: "CL-001", Name: "A", Status: models.ClientStatusActive}
	require.NoError(t, ts.CreateClient(ctx, active))
	require.NoError(t, ts.MarkClientSynced(ctx, active.ID, "xc-1"))

	errored := &models.Client{ClientCode: "CL-002", Name: "B", Status: models.ClientStatusActive}
	require.NoError(t, ts.CreateClient(ctx, errored))
	require.NoError(t, ts.MarkClientSyncError(ctx, errored.ID, "boom"))

	archived := &models.Client{ClientCode: "CL-003", Name: "C", Status: models.ClientStatusArchived}
	require.NoError(t, ts.CreateClient(ctx, archived))

	require.NoError(t, ts.CreateInvoice(ctx, &models.Invoice{ClientID: active.ID, InvoiceNumber: "INV-1"}))

	summary, err := ts.ClientSummary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.TotalClients)
	assert.EqualValues(t, 2, summary.ActiveClients)
	assert.EqualValues(t, 1, summary.PendingSync)
	assert.EqualValues(t, 1, summary.SyncErrors)
	assert.EqualValues(t, 1, summary.TotalInvoices)
}

func TestInvoiceNumberUniquePerTenant(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ts := store.ForTenant(uuid.New())

	require.NoError(t, ts.CreateInvoice(ctx, &models.Invoice{InvoiceNumber: "INV-1"}))
	err := ts.CreateInvoice(ctx, &models.Invoice{InvoiceNumber: "INV-1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestIntegrationSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ts := store.ForTenant(uuid.New())

	_, err := ts.IntegrationSettings(ctx, models.IntegrationTypeXero)
	assert.ErrorIs(t, err, ErrNotFound)

	settings := &models.IntegrationSettings{
		IntegrationType: models.IntegrationTypeXero,
		Enabled:         true,
		Credentials:     []byte("sealed"),
		SyncStatus:      "connected",
	}
	require.NoError(t, ts.SaveIntegrationSettings(ctx, settings))

	got, err := ts.IntegrationSettings(ctx, models.IntegrationTypeXero)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, []byte("sealed"), got.Credentials)
	assert.Equal(t, ts.TenantID(), got.TenantID)

	// Upsert semantics: saving again replaces the row
	got.Enabled = false
	require.NoError(t, ts.SaveIntegrationSettings(ctx, got))
	got, err = ts.IntegrationSettings(ctx, models.IntegrationTypeXero)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	// Another tenant sees nothing
	other := store.ForTenant(uuid.New())
	_, err = other.IntegrationSettings(ctx, models.IntegrationTypeXero)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTenantUserLookups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tenantID := uuid.New()
	ts := store.ForTenant(tenantID)

	user := &models.User{Email: "jane@firm.co.uk", FirstName: "Jane", TenantID: &tenantID}
	require.NoError(t, store.CreateUser(ctx, user))

	// Platform admins have no tenant and are invisible here
	require.NoError(t, store.CreateUser(ctx, &models.User{Email: "root@platform.io", IsAdmin: true}))

	got, err := ts.GetTenantUserByEmail(ctx, "JANE@firm.co.uk")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	users, err := ts.ListTenantUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jane@firm.co.uk", users[0].Email)
}

func TestLeadDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ts := store.ForTenant(uuid.New())

	lead := &models.Lead{Name: "Prospect Ltd", Email: "hello@prospect.co.uk"}
	require.NoError(t, ts.CreateLead(ctx, lead))
	assert.Equal(t, models.LeadStatusNew, lead.Status)

	got, err := ts.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Prospect Ltd", got.Name)
}

func TestOnboardingTaskDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tenantID := uuid.New()
	ts := store.ForTenant(tenantID)

	task := &models.OnboardingTask{ClientID: uuid.New(), Title: "Send engagement letter"}
	require.NoError(t, ts.CreateOnboardingTask(ctx, task))
	assert.Equal(t, models.TaskStatusOpen, task.Status)
	assert.Equal(t, tenantID, task.TenantID)
	assert.NotEqual(t, uuid.Nil, task.ID)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, paginate(items, 2, 0))
	assert.Equal(t, []int{3, 4}, paginate(items, 2, 2))
	assert.Equal(t, []int{5}, paginate(items, 2, 4))
	assert.Nil(t, paginate(items, 2, 5))
	assert.Equal(t, items, paginate(items, 0, 0))
}

func TestUserPasswordHashedOnCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user := &models.User{
		Email:    "jane@firm.co.uk",
		Settings: models.Variables{"password": "hunter22"},
	}
	require.NoError(t, store.CreateUser(ctx, user))

	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	_, ok := user.Settings["password"]
	assert.False(t, ok, "the plaintext must not survive in settings")
}

func TestUserPasswordHashedOnUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user := &models.User{
		Email:    "jane@firm.co.uk",
		Settings: models.Variables{"password": "hunter22"},
	}
	require.NoError(t, store.CreateUser(ctx, user))
	oldHash := user.PasswordHash

	user.Settings = models.Variables{"password": "brand-new-secret"}
	require.NoError(t, store.UpdateUser(ctx, user))

	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, oldHash, user.PasswordHash)
	assert.NotEqual(t, "brand-new-secret", user.PasswordHash)
	_, ok := user.Settings["password"]
	assert.False(t, ok, "the plaintext must not survive in settings")

	stored, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash)
	_, ok = stored.Settings["password"]
	assert.False(t, ok)
}
