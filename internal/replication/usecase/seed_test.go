package usecase

import (
	"context"
	"errors"
	"testing"

	"pos-replicator/internal/replication/adapter/persistence/memory"
	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/shared/database"
	"pos-replicator/internal/shared/eventbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedReplica_InsertsOnlyAbsent(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bills", doc(1, t1), doc(2, t3, "total", 20), doc(3, t1))
	f.primary.Put("tables", doc("t1", t0))
	f.primary.Put("sync_provenance", doc("x", t0))
	f.replica.Put("bills", doc(2, t1, "total", 15))

	seeder := NewSeeder(f.orchestrator(t, "sync_provenance"), nil)
	result := seeder.SeedReplica(context.Background())

	require.False(t, result.Skipped)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, 2, result.CollectionsProcessed)
	assert.Equal(t, 3, result.TotalSynced)
	assert.Equal(t, 1, result.TotalSkipped)
	assert.Empty(t, result.Errors)

	got, _ := f.replica.Get("bills", 2)
	assert.Equal(t, 15, got["total"], "seeding never overwrites, even when the primary is newer")
	assert.Empty(t, f.replica.KeyStrings("sync_provenance"))
}

func TestSeedReplica_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bills", doc(1, t1), doc(2, t1))
	seeder := NewSeeder(f.orchestrator(t), nil)

	first := seeder.SeedReplica(context.Background())
	assert.Equal(t, 2, first.TotalSynced)

	second := seeder.SeedReplica(context.Background())
	assert.Zero(t, second.TotalSynced)
	assert.Equal(t, 2, second.TotalSkipped)
}

func TestSeedReplica_NeverWritesPrimary(t *testing.T) {
	f := newFixture(t)
	f.replica.Put("bills", doc(9, t1))
	f.primary.Put("bills", doc(1, t1))

	NewSeeder(f.orchestrator(t), nil).SeedReplica(context.Background())
	assert.Equal(t, []string{"1"}, f.primary.KeyStrings("bills"))
}

func TestSeedReplica_CollectionFailure(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bad", doc(1, t1))
	f.primary.Put("good", doc(1, t1))
	f.primary.SetHooks(memory.Hooks{BeforeOp: func(ctx context.Context, op, col string) error {
		if op == memory.OpFetchAll && col == "bad" {
			return errors.New("timeout")
		}
		return nil
	}})

	result := NewSeeder(f.orchestrator(t), nil).SeedReplica(context.Background())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bad", result.Errors[0].Collection)
	assert.Equal(t, 1, result.CollectionsProcessed)
	assert.Equal(t, 1, result.TotalSynced)
	assert.Equal(t, model.OutcomePartial, result.Outcome())
}

func TestSeedReplica_ConcurrentInsertCountsAsPresent(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bills", doc(1, t1), doc(2, t1), doc(3, t1))
	f.replica.Put("bills", doc(1, t1))
	f.replica.SetHooks(memory.Hooks{BeforeOp: func(ctx context.Context, op, col string) error {
		if op == memory.OpInsertMany {
			// Another writer creates doc 2 between the key listing and the bulk insert.
			f.replica.Put("bills", doc(2, t2))
		}
		return nil
	}})

	result := NewSeeder(f.orchestrator(t), nil).SeedReplica(context.Background())
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.TotalSynced)
	assert.Equal(t, 2, result.TotalSkipped)
	assert.Equal(t, 1, result.CollectionsProcessed)
	assert.Equal(t, []string{"1", "2", "3"}, f.replica.KeyStrings("bills"))
}

func TestSeedReplica_PanicReleasesGuard(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bills", doc(1, t1))
	f.primary.SetHooks(memory.Hooks{BeforeOp: func(ctx context.Context, op, col string) error {
		if op == memory.OpListCollections {
			panic("driver bug")
		}
		return nil
	}})
	orch := f.orchestrator(t)
	seeder := NewSeeder(orch, nil)

	var result *model.SeedResult
	require.NotPanics(t, func() { result = seeder.SeedReplica(context.Background()) })
	require.Len(t, result.Errors, 1)
	assert.Equal(t, allCollections, result.Errors[0].Collection)
	assert.False(t, orch.IsRunning())

	f.primary.SetHooks(memory.Hooks{})
	assert.Equal(t, 1, seeder.SeedReplica(context.Background()).TotalSynced)
}

func TestSeedReplica_SkipsWhenUnavailable(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bills", doc(1, t1))
	f.stores.MarkAvailability(context.Background(), database.RolePrimary, errors.New("dns failure"))

	result := NewSeeder(f.orchestrator(t), nil).SeedReplica(context.Background())
	assert.True(t, result.Skipped)
	assert.Equal(t, model.ReasonPrimaryUnavailable, result.Reason)
	assert.Zero(t, f.primary.Calls())
	assert.Zero(t, f.replica.Calls())
}

func TestSeedReplica_PublishesResult(t *testing.T) {
	f := newFixture(t)
	bus := eventbus.NewEventBus(nil)
	var got *model.SeedResult
	bus.Subscribe(eventbus.EventTypeSeedCompleted, func(ctx context.Context, e eventbus.Event) error {
		got = e.Data().(*model.SeedResult)
		return nil
	})

	orch := NewOrchestrator(f.stores, nil, nil, bus, nil)
	result := NewSeeder(orch, nil).SeedReplica(context.Background())
	assert.Same(t, result, got)
	assert.False(t, orch.IsRunning())
}
