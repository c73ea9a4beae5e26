package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/practicehub/practice-server/internal/storage"
	"github.com/practicehub/practice-server/internal/xero"
)

// NATSSubscriber consumes tenant sync requests published by the API
// server and runs the Xero sync for them
type NATSSubscriber struct {
	nc    *nats.Conn
	store storage.Store
	sync  *xero.Orchestrator
	subs  []*nats.Subscription
}

// NewNATSSubscriber creates a NATS subscriber
func NewNATSSubscriber(nc *nats.Conn, store storage.Store, sync *xero.Orchestrator) *NATSSubscriber {
	return &NATSSubscriber{
		nc:    nc,
		store: store,
		sync:  sync,
		subs:  make([]*nats.Subscription, 0),
	}
}

// Start subscribes and blocks until ctx is cancelled
func (s *NATSSubscriber) Start(ctx context.Context) error {
	// A queue group so multiple workers split the load per tenant
	sub, err := s.nc.QueueSubscribe("sync.xero.*.requested", "sync-workers", s.handleSyncRequest)
	if err != nil {
		return fmt.Errorf("subscribe sync requests: %w", err)
	}
	s.subs = append(s.subs, sub)

	retrySub, err := s.nc.QueueSubscribe("sync.xero.*.retry", "sync-workers", s.handleRetryRequest)
	if err != nil {
		return fmt.Errorf("subscribe retry requests: %w", err)
	}
	s.subs = append(s.subs, retrySub)

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("NATS subscriber started")

	<-ctx.Done()

	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	return ctx.Err()
}

// handleSyncRequest runs a pending-sync pass for the tenant in the subject
func (s *NATSSubscriber) handleSyncRequest(msg *nats.Msg) {
	tenantID, ok := tenantFromSubject(msg.Subject)
	if !ok {
		log.Error().Str("subject", msg.Subject).Msg("Malformed sync request subject")
		return
	}

	ctx := context.Background()
	ts := s.store.ForTenant(tenantID)

	result, err := s.sync.ProcessPending(ctx, ts)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Pending sync run failed")
		return
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Int("clients_synced", result.ClientsSynced).
		Int("invoices_synced", result.InvoicesSynced).
		Msg("Sync request processed")
}

// handleRetryRequest re-syncs the tenant's failed records
func (s *NATSSubscriber) handleRetryRequest(msg *nats.Msg) {
	tenantID, ok := tenantFromSubject(msg.Subject)
	if !ok {
		log.Error().Str("subject", msg.Subject).Msg("Malformed retry request subject")
		return
	}

	ctx := context.Background()
	ts := s.store.ForTenant(tenantID)

	result, err := s.sync.RetryFailed(ctx, ts)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("Retry run failed")
		return
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Int("clients_retried", result.ClientsRetried).
		Int("invoices_retried", result.InvoicesRetried).
		Msg("Retry request processed")
}

// tenantFromSubject pulls the tenant id out of sync.xero.<id>.<verb>
func tenantFromSubject(subject string) (uuid.UUID, bool) {
	parts := strings.Split(subject, ".")
	if len(parts) != 4 {
		return uuid.Nil, false
	}
	tenantID, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, false
	}
	return tenantID, true
}
