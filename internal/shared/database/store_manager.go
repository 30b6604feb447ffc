package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pos-replicator/internal/replication/domain/repository"
	apperrors "pos-replicator/internal/shared/errors"
	"pos-replicator/internal/shared/eventbus"
	"pos-replicator/internal/shared/logger"
)

// Store roles
const (
	RolePrimary = "primary"
	RoleReplica = "replica"
)

// AvailabilityChange is published on the event bus whenever a store flips state.
type AvailabilityChange struct {
	Store     string
	Available bool
	Err       error
}

// StoreManager holds the primary and replica stores and the outcome of the most
// recent connection attempt against each. Connection setup and teardown belong
// to the host; the manager only records and reports.
type StoreManager struct {
	mu           sync.RWMutex
	primary      repository.Store
	replica      repository.Store
	available    map[string]bool
	lastChecked  map[string]time.Time
	probeTimeout time.Duration
	events       eventbus.Publisher
	logger       logger.Logger
}

// NewStoreManager creates a manager with both stores marked unavailable until the
// host reports a successful connection or Probe succeeds.
func NewStoreManager(primary, replica repository.Store, events eventbus.Publisher, log logger.Logger) *StoreManager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &StoreManager{
		primary:      primary,
		replica:      replica,
		available:    map[string]bool{RolePrimary: false, RoleReplica: false},
		lastChecked:  make(map[string]time.Time),
		probeTimeout: 5 * time.Second,
		events:       events,
		logger:       log.WithComponent("store-manager"),
	}
}

// SetProbeTimeout bounds each ping issued by Probe.
func (m *StoreManager) SetProbeTimeout(d time.Duration) {
	if d > 0 {
		m.probeTimeout = d
	}
}

// IsPrimaryAvailable reports whether the last connection attempt to the primary succeeded.
func (m *StoreManager) IsPrimaryAvailable() bool {
	return m.isAvailable(RolePrimary)
}

// IsReplicaAvailable reports whether the last connection attempt to the replica succeeded.
func (m *StoreManager) IsReplicaAvailable() bool {
	return m.isAvailable(RoleReplica)
}

// PrimaryHandle returns the primary store or ErrNotConnected.
func (m *StoreManager) PrimaryHandle() (repository.Store, error) {
	return m.handle(RolePrimary)
}

// ReplicaHandle returns the replica store or ErrNotConnected.
func (m *StoreManager) ReplicaHandle() (repository.Store, error) {
	return m.handle(RoleReplica)
}

// MarkAvailability records the result of a connection attempt made by the host.
func (m *StoreManager) MarkAvailability(ctx context.Context, role string, err error) {
	m.mu.Lock()
	prev, known := m.available[role]
	if !known {
		m.mu.Unlock()
		m.logger.Warnf("Ignoring availability for unknown store role %q", role)
		return
	}
	now := err == nil
	m.available[role] = now
	m.lastChecked[role] = time.Now()
	m.mu.Unlock()

	if prev == now {
		return
	}

	fields := map[string]interface{}{"store": role, "available": now}
	if err != nil {
		fields["error"] = err.Error()
		m.logger.WithFields(fields).Warn("Store became unavailable")
	} else {
		m.logger.WithFields(fields).Info("Store became available")
	}

	if m.events != nil {
		change := AvailabilityChange{Store: role, Available: now, Err: err}
		if pubErr := m.events.Publish(ctx, eventbus.NewBasicEventWithSource(eventbus.EventTypeStoreAvailability, change, "store-manager")); pubErr != nil {
			m.logger.Warnf("Failed to publish availability change: %v", pubErr)
		}
	}
}

// Probe pings every store that supports it and records the outcome. The returned
// error joins the individual ping failures.
func (m *StoreManager) Probe(ctx context.Context) error {
	var failures []error
	for role, store := range map[string]repository.Store{RolePrimary: m.primary, RoleReplica: m.replica} {
		err := m.ping(ctx, store)
		m.MarkAvailability(ctx, role, err)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", role, err))
		}
	}
	if len(failures) > 0 {
		return apperrors.NewInfrastructureError("store probe failed").WithCause(errors.Join(failures...))
	}
	return nil
}

// LastChecked returns when the availability of role was last recorded.
func (m *StoreManager) LastChecked(role string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.lastChecked[role]
	return t, ok
}

func (m *StoreManager) ping(ctx context.Context, store repository.Store) error {
	if store == nil {
		return apperrors.ErrNotConnected
	}
	checker, ok := store.(repository.HealthChecker)
	if !ok {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	return checker.Ping(pingCtx)
}

func (m *StoreManager) isAvailable(role string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available[role]
}

func (m *StoreManager) handle(role string) (repository.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	store := m.primary
	if role == RoleReplica {
		store = m.replica
	}
	if !m.available[role] || store == nil {
		return nil, apperrors.NewUnavailableError(role)
	}
	return store, nil
}
