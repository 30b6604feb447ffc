package usecase

import (
	"context"
	"testing"
	"time"

	"pos-replicator/internal/replication/adapter/persistence/memory"
	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/shared/database"
)

var (
	t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(1 * time.Hour)
	t2 = t0.Add(2 * time.Hour)
	t3 = t0.Add(3 * time.Hour)
)

type fixture struct {
	primary *memory.Store
	replica *memory.Store
	stores  *database.StoreManager
}

// newFixture returns two empty in-memory stores, both marked available.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	primary := memory.NewStore(database.RolePrimary)
	replica := memory.NewStore(database.RoleReplica)
	stores := database.NewStoreManager(primary, replica, nil, nil)
	stores.MarkAvailability(context.Background(), database.RolePrimary, nil)
	stores.MarkAvailability(context.Background(), database.RoleReplica, nil)
	return &fixture{primary: primary, replica: replica, stores: stores}
}

func (f *fixture) orchestrator(t *testing.T, excluded ...string) *Orchestrator {
	t.Helper()
	filter, err := NewCollectionFilter(excluded, "", nil)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	return NewOrchestrator(f.stores, NewCollectionSyncer(nil, nil), filter, nil, nil)
}

func doc(id interface{}, updated time.Time, fields ...interface{}) model.Document {
	d := model.Document{model.IDField: id, model.FieldUpdatedAt: updated}
	for i := 0; i+1 < len(fields); i += 2 {
		d[fields[i].(string)] = fields[i+1]
	}
	return d
}
