package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/pkg/crypto"
)

// MemoryStore implements Store in memory. It backs the test suites and the
// "memory" database driver for local development. Transactions are not
// isolated: BeginTx returns the same store and Commit/Rollback are no-ops.
type MemoryStore struct {
	mu sync.RWMutex

	tenants      map[uuid.UUID]*models.Tenant
	users        map[uuid.UUID]*models.User
	clients      map[uuid.UUID]*models.Client
	invoices     map[uuid.UUID]*models.Invoice
	integrations map[string]*models.IntegrationSettings
	importLogs   map[uuid.UUID]*models.ImportLog
	leads        map[uuid.UUID]*models.Lead
	tasks        map[uuid.UUID]*models.OnboardingTask

	// insertion order, newest last
	clientOrder []uuid.UUID
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:      make(map[uuid.UUID]*models.Tenant),
		users:        make(map[uuid.UUID]*models.User),
		clients:      make(map[uuid.UUID]*models.Client),
		invoices:     make(map[uuid.UUID]*models.Invoice),
		integrations: make(map[string]*models.IntegrationSettings),
		importLogs:   make(map[uuid.UUID]*models.ImportLog),
		leads:        make(map[uuid.UUID]*models.Lead),
		tasks:        make(map[uuid.UUID]*models.OnboardingTask),
	}
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

// BeginTx returns the store itself; memory mode has no isolation
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) { return s, nil }

// Commit is a no-op
func (s *MemoryStore) Commit() error { return nil }

// Rollback is a no-op
func (s *MemoryStore) Rollback() error { return nil }

// ForTenant returns the tenant-scoped view
func (s *MemoryStore) ForTenant(tenantID uuid.UUID) TenantStore {
	return &memTenantStore{s: s, tenantID: tenantID}
}

// ========== Tenant Methods ==========

// CreateTenant creates a tenant
func (s *MemoryStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tenants {
		if existing.Slug == tenant.Slug {
			return ErrDuplicateKey
		}
	}

	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	tenant.IsActive = true

	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

// GetTenant gets a tenant by ID
func (s *MemoryStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tenant
	return &cp, nil
}

// GetTenantBySlug gets a tenant by slug
func (s *MemoryStore) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tenant := range s.tenants {
		if tenant.Slug == slug {
			cp := *tenant
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateTenant updates a tenant
func (s *MemoryStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenant.ID]; !ok {
		return ErrNotFound
	}
	tenant.UpdatedAt = time.Now()
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

// ListTenants lists tenants
func (s *MemoryStore) ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tenants []*models.Tenant
	for _, tenant := range s.tenants {
		cp := *tenant
		tenants = append(tenants, &cp)
	}
	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].CreatedAt.After(tenants[j].CreatedAt)
	})

	total := int64(len(tenants))
	return paginate(tenants, limit, offset), total, nil
}

// ========== User Methods ==========

// CreateUser creates a user
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicateKey
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if pwd, ok := user.Settings["password"].(string); ok && pwd != "" {
		hash, err := crypto.HashPassword(pwd)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		delete(user.Settings, "password")
	}

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUser gets a user by ID
func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByEmail gets a user by email
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateUser updates a user
func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()

	if pwd, ok := user.Settings["password"].(string); ok && pwd != "" {
		hash, err := crypto.HashPassword(pwd)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		delete(user.Settings, "password")
	}

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// ListUsers lists users, optionally filtered by tenant
func (s *MemoryStore) ListUsers(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]*models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*models.User
	for _, user := range s.users {
		if tenantID != nil && (user.TenantID == nil || *user.TenantID != *tenantID) {
			continue
		}
		cp := *user
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	total := int64(len(users))
	return paginate(users, limit, offset), total, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
