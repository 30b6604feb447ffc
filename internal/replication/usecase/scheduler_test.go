package usecase

import (
	"context"
	"testing"
	"time"

	"pos-replicator/internal/replication/adapter/persistence/memory"
	"pos-replicator/internal/shared/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_NonPositiveIntervalDisables(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(context.Background(), f.orchestrator(t), nil, nil)

	s.StartPeriodic(0)
	assert.False(t, s.Enabled())
	s.StartPeriodic(-5)
	assert.False(t, s.Enabled())
	assert.Zero(t, s.IntervalMillis())
}

func TestScheduler_RunsPassesPeriodically(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bills", doc(1, t1))
	orch := f.orchestrator(t)
	s := NewScheduler(context.Background(), orch, nil, nil)

	s.StartPeriodic(10)
	defer s.StopPeriodic()
	assert.True(t, s.Enabled())
	assert.Equal(t, int64(10), s.IntervalMillis())

	assert.Eventually(t, func() bool { return orch.LastSyncTime() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1"}, f.replica.KeyStrings("bills"))
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(context.Background(), f.orchestrator(t), nil, nil)

	s.StopPeriodic()
	s.StartPeriodic(1000)
	s.StopPeriodic()
	s.StopPeriodic()
	assert.False(t, s.Enabled())
}

func TestScheduler_RearmReplacesInterval(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(context.Background(), f.orchestrator(t), nil, nil)
	defer s.StopPeriodic()

	s.StartPeriodic(60000)
	s.StartPeriodic(30000)
	assert.Equal(t, int64(30000), s.IntervalMillis())
}

func TestScheduler_ProbesBeforeEachTick(t *testing.T) {
	primary := memory.NewStore(database.RolePrimary)
	replica := memory.NewStore(database.RoleReplica)
	primary.Put("bills", doc(1, t1))
	stores := database.NewStoreManager(primary, replica, nil, nil)
	require.False(t, stores.IsPrimaryAvailable())

	orch := NewOrchestrator(stores, nil, nil, nil, nil)
	s := NewScheduler(context.Background(), orch, stores, nil)
	s.StartPeriodic(10)
	defer s.StopPeriodic()

	assert.Eventually(t, func() bool { return orch.LastSyncTime() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, stores.IsPrimaryAvailable())
	assert.True(t, stores.IsReplicaAvailable())
}

func TestScheduler_StopsWithParentContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	orch := f.orchestrator(t)
	s := NewScheduler(ctx, orch, nil, nil)
	cancel()

	s.StartPeriodic(5)
	defer s.StopPeriodic()
	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, orch.LastSyncTime())
}
