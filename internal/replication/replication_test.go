package replication

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"pos-replicator/internal/replication/adapter/persistence/memory"
	"pos-replicator/internal/replication/config"
	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/shared/database"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T, mutate func(*config.ReplicationConfig)) (*ReplicationModule, *memory.Store, *memory.Store) {
	t.Helper()
	cfg := config.DefaultReplicationConfig()
	cfg.Sync.IntervalMillis = 0
	cfg.Sync.SeedOnStartup = false
	if mutate != nil {
		mutate(cfg)
	}

	primary := memory.NewStore(database.RolePrimary)
	replica := memory.NewStore(database.RoleReplica)
	module, err := NewReplicationModule(cfg, primary, replica, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = module.Stop() })
	return module, primary, replica
}

func TestReplicationModule_RunPassOverHTTP(t *testing.T) {
	module, primary, replica := newTestModule(t, nil)
	primary.Put("bills", model.Document{"_id": 1, "updatedAt": time.Now()})
	primary.Put("sync_provenance", model.Document{"_id": "marker"})
	ctx := context.Background()
	module.Stores.MarkAvailability(ctx, database.RolePrimary, nil)
	module.Stores.MarkAvailability(ctx, database.RoleReplica, nil)

	app := fiber.New()
	module.RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("POST", "/api/v1/sync/run", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result model.PassResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.CreatedForward)
	assert.Equal(t, []string{"1"}, replica.KeyStrings("bills"))
	assert.Empty(t, replica.KeyStrings("sync_provenance"), "provenance collection is never replicated")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/sync/passes", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode, "journal is disabled without Redis")
}

func TestReplicationModule_SkipsUntilStoresReported(t *testing.T) {
	module, primary, replica := newTestModule(t, nil)
	primary.Put("bills", model.Document{"_id": 1})

	result := module.SyncUsecase.RunPass(context.Background())
	assert.True(t, result.Skipped)
	assert.Equal(t, model.ReasonPrimaryUnavailable, result.Reason)
	assert.Zero(t, primary.Calls())
	assert.Zero(t, replica.Calls())
}

func TestReplicationModule_StartSeedsReplica(t *testing.T) {
	module, primary, replica := newTestModule(t, func(cfg *config.ReplicationConfig) {
		cfg.Sync.SeedOnStartup = true
		cfg.Sync.IntervalMillis = 60000
	})
	primary.Put("tables", model.Document{"_id": "t1"}, model.Document{"_id": "t2"})

	module.Start()
	assert.Eventually(t, func() bool { return len(replica.KeyStrings("tables")) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, module.SyncUsecase.GetStatus().PeriodicEnabled)

	require.NoError(t, module.Stop())
	assert.False(t, module.SyncUsecase.GetStatus().PeriodicEnabled)
}

func TestReplicationModule_HealthCheck(t *testing.T) {
	module, _, replica := newTestModule(t, nil)
	require.NoError(t, module.HealthCheck(context.Background()))
	assert.True(t, module.Stores.IsReplicaAvailable())

	replica.SetPingError(assert.AnError)
	assert.Error(t, module.HealthCheck(context.Background()))
	assert.False(t, module.Stores.IsReplicaAvailable())
}

func TestNewReplicationModule_RejectsInvalidFilter(t *testing.T) {
	cfg := config.DefaultReplicationConfig()
	cfg.Sync.CollectionFilter = "name >"

	_, err := NewReplicationModule(cfg, memory.NewStore("p"), memory.NewStore("r"), nil, nil)
	assert.Error(t, err)
}
