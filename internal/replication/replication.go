package replication

import (
	"context"
	"fmt"

	httpadapter "pos-replicator/internal/replication/adapter/http"
	redispersistence "pos-replicator/internal/replication/adapter/persistence/redis"
	"pos-replicator/internal/replication/config"
	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/replication/domain/repository"
	"pos-replicator/internal/replication/metrics"
	"pos-replicator/internal/replication/usecase"
	"pos-replicator/internal/shared/database"
	"pos-replicator/internal/shared/eventbus"
	"pos-replicator/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ReplicationModule assembles the sync engine, its HTTP surface and its observers.
type ReplicationModule struct {
	Config       *config.ReplicationConfig
	Stores       *database.StoreManager
	EventBus     *eventbus.EventBus
	Orchestrator *usecase.Orchestrator
	SyncUsecase  usecase.ReplicationUsecase
	SyncHandler  *httpadapter.SyncHandler
	Logger       logger.Logger

	// Journal is nil when Redis is disabled.
	RedisClient *redis.Client
	Journal     *redispersistence.PassJournal
}

// NewReplicationModule wires the module around the primary and replica stores.
// Both stores start out unavailable; the host reports connection results through
// Stores.MarkAvailability. redisClient is optional.
func NewReplicationModule(
	cfg *config.ReplicationConfig,
	primary repository.Store,
	replica repository.Store,
	redisClient *redis.Client,
	log logger.Logger,
) (*ReplicationModule, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if cfg == nil {
		cfg = config.DefaultReplicationConfig()
		log.Info("No replication configuration provided, using defaults.")
	}
	log.Info("Initializing Replication Module...")

	bus := eventbus.NewEventBus(log)
	metrics.Subscribe(bus)
	metrics.SetStoreAvailable(database.RolePrimary, false)
	metrics.SetStoreAvailable(database.RoleReplica, false)

	stores := database.NewStoreManager(primary, replica, bus, log)

	filter, err := usecase.NewCollectionFilter(cfg.Sync.Exclusions(), cfg.Sync.CollectionFilter, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build collection filter: %w", err)
	}
	syncer := usecase.NewCollectionSyncer(model.NewTimestampResolver(cfg.Sync.TimestampFields), log)

	orchestrator := usecase.NewOrchestrator(stores, syncer, filter, bus, log)
	orchestrator.SetPassTimeout(cfg.Sync.PassTimeout)
	seeder := usecase.NewSeeder(orchestrator, log)

	scheduler := usecase.NewScheduler(context.Background(), orchestrator, stores, log)

	module := &ReplicationModule{
		Config:       cfg,
		Stores:       stores,
		EventBus:     bus,
		Orchestrator: orchestrator,
		Logger:       log,
		RedisClient:  redisClient,
	}

	var journal usecase.PassJournal
	if redisClient != nil {
		module.Journal = redispersistence.NewPassJournal(redisClient, cfg.Redis.PassStream, cfg.Redis.StreamMaxLength, log)
		module.Journal.Subscribe(bus)
		journal = module.Journal
		log.Info("Pass journal enabled.")
	}

	module.SyncUsecase = usecase.NewReplicationUsecase(stores, orchestrator, seeder, scheduler, journal, log)
	module.SyncHandler = httpadapter.NewSyncHandler(module.SyncUsecase, log)

	log.Info("Replication Module initialized.")
	return module, nil
}

// RegisterRoutes mounts the sync API under /api/v1.
func (m *ReplicationModule) RegisterRoutes(router fiber.Router) {
	m.SyncHandler.RegisterRoutes(router.Group("/api/v1"))
	m.Logger.Info("Replication HTTP routes registered.")
}

// Start arms the periodic timer and, when configured, seeds the replica in the
// background. A scheduled tick that lands during the seed is skipped.
func (m *ReplicationModule) Start() {
	m.SyncUsecase.StartPeriodic(m.Config.Sync.IntervalMillis)

	if m.Config.Sync.SeedOnStartup {
		go func() {
			ctx := context.Background()
			if err := m.Stores.Probe(ctx); err != nil {
				m.Logger.Warnf("Store probe before startup seed failed: %v", err)
			}
			result := m.SyncUsecase.SeedReplica(ctx)
			if result.Skipped {
				m.Logger.Warnf("Startup seed skipped: %s", result.Reason)
			}
		}()
	}
}

// HealthCheck probes both stores and, when enabled, the journal.
func (m *ReplicationModule) HealthCheck(ctx context.Context) error {
	if err := m.Stores.Probe(ctx); err != nil {
		return err
	}
	if m.Journal != nil {
		if err := m.Journal.Ping(ctx); err != nil {
			return fmt.Errorf("pass journal: %w", err)
		}
	}
	return nil
}

// Stop disarms the timer. A pass already running is left to finish.
func (m *ReplicationModule) Stop() error {
	m.Logger.Info("Stopping Replication Module...")
	m.SyncUsecase.StopPeriodic()
	m.Logger.Info("Replication Module stopped.")
	return nil
}
