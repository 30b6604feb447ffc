package di

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"pos-replicator/internal/replication"
	"pos-replicator/internal/replication/adapter/persistence/mongodb"
	"pos-replicator/internal/replication/config"
	"pos-replicator/internal/replication/domain/repository"
	"pos-replicator/internal/shared/database"
	"pos-replicator/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Container represents a dependency injection container with lifecycle management
type Container struct {
	mu       sync.RWMutex
	services map[reflect.Type]interface{}
	// Connections owned by the container
	PrimaryClient *mongo.Client
	ReplicaClient *mongo.Client
	RedisClient   *redis.Client
	// Logger
	Logger logger.Logger
}

// NewContainer creates a new, empty DI container
func NewContainer() *Container {
	return &Container{
		services: make(map[reflect.Type]interface{}),
	}
}

// InitializeReplication creates the MongoDB clients for both stores, the optional
// Redis client, and the replication module. A store that cannot be reached is only
// marked unavailable; the scheduler keeps probing it.
func (c *Container) InitializeReplication(ctx context.Context, cfg *config.ReplicationConfig) error {
	if cfg == nil {
		return errors.New("replication configuration is required")
	}
	log := c.logger()

	primaryClient, err := connectMongo(ctx, cfg.Mongo.PrimaryURI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("failed to create primary MongoDB client: %w", err)
	}
	replicaClient, err := connectMongo(ctx, cfg.Mongo.ReplicaURI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		_ = primaryClient.Disconnect(context.Background())
		return fmt.Errorf("failed to create replica MongoDB client: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = config.NewRedisClient(&cfg.Redis)
	}

	primary := mongodb.NewStore(database.RolePrimary, primaryClient.Database(cfg.Mongo.PrimaryDatabase), cfg.Sync.BatchSize, log)
	replica := mongodb.NewStore(database.RoleReplica, replicaClient.Database(cfg.Mongo.ReplicaDatabase), cfg.Sync.BatchSize, log)

	c.mu.Lock()
	c.PrimaryClient = primaryClient
	c.ReplicaClient = replicaClient
	c.RedisClient = redisClient
	c.mu.Unlock()

	if err := c.InitializeWithStores(cfg, primary, replica); err != nil {
		return err
	}
	stores, err := GetService[*database.StoreManager](c)
	if err != nil {
		return err
	}

	// Report the initial connection attempts; Probe repeats this before every tick.
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()
	stores.MarkAvailability(pingCtx, database.RolePrimary, primary.Ping(pingCtx))
	stores.MarkAvailability(pingCtx, database.RoleReplica, replica.Ping(pingCtx))
	return nil
}

// InitializeWithStores builds the replication module around already constructed
// stores, using the container's Redis client if one is set. The module, its store
// manager and cfg are registered for resolution.
func (c *Container) InitializeWithStores(cfg *config.ReplicationConfig, primary, replica repository.Store) error {
	c.mu.RLock()
	redisClient := c.RedisClient
	c.mu.RUnlock()

	module, err := replication.NewReplicationModule(cfg, primary, replica, redisClient, c.logger())
	if err != nil {
		return fmt.Errorf("failed to create replication module: %w", err)
	}
	for _, svc := range []interface{}{module, module.Stores, module.Config} {
		if err := c.Register(svc); err != nil {
			return err
		}
	}
	return nil
}

func connectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	return mongo.Connect(ctx, opts)
}

func (c *Container) logger() logger.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Logger == nil {
		c.Logger = logger.NewLogger()
	}
	return c.Logger
}

// Register stores service under its type; pointers are keyed by their element type.
func (c *Container) Register(service interface{}) error {
	if service == nil {
		return errors.New("cannot register a nil service")
	}
	if v := reflect.ValueOf(service); v.Kind() == reflect.Ptr && v.IsNil() {
		return errors.New("cannot register a nil service")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	serviceType := reflect.TypeOf(service)
	if serviceType.Kind() == reflect.Ptr {
		serviceType = serviceType.Elem()
	}

	c.services[serviceType] = service
	return nil
}

// Resolve resolves a registered service by type
func (c *Container) Resolve(serviceType reflect.Type) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if service, exists := c.services[serviceType]; exists {
		return service, nil
	}
	return nil, fmt.Errorf("service of type %v not registered", serviceType)
}

// GetService is a generic helper for resolving services
func GetService[T any](c *Container) (T, error) {
	var zero T
	serviceType := reflect.TypeOf((*T)(nil)).Elem()
	if serviceType.Kind() == reflect.Ptr {
		serviceType = serviceType.Elem()
	}

	service, err := c.Resolve(serviceType)
	if err != nil {
		return zero, err
	}

	if typedService, ok := service.(T); ok {
		return typedService, nil
	}

	return zero, fmt.Errorf("service is not of expected type %T", zero)
}

// GetReplicationModule returns the registered replication module, or nil.
func (c *Container) GetReplicationModule() *replication.ReplicationModule {
	module, err := GetService[*replication.ReplicationModule](c)
	if err != nil {
		return nil
	}
	return module
}

// HealthCheck probes the stores and the pass journal.
func (c *Container) HealthCheck(ctx context.Context) error {
	module := c.GetReplicationModule()
	if module == nil {
		return errors.New("replication module not initialized")
	}
	return module.HealthCheck(ctx)
}

// Cleanup stops registered services, then closes the connections they used.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	for _, service := range c.services {
		switch svc := service.(type) {
		case interface{ Stop() error }:
			if err := svc.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop %T: %w", svc, err))
			}
		case interface{ Cleanup(context.Context) error }:
			if err := svc.Cleanup(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to cleanup %T: %w", svc, err))
			}
		}
	}

	for name, client := range map[string]*mongo.Client{database.RolePrimary: c.PrimaryClient, database.RoleReplica: c.ReplicaClient} {
		if client == nil {
			continue
		}
		if err := client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect %s MongoDB: %w", name, err))
		}
	}
	c.PrimaryClient, c.ReplicaClient = nil, nil

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis client: %w", err))
		}
		c.RedisClient = nil
	}

	c.services = make(map[reflect.Type]interface{})

	return errors.Join(errs...)
}

// Close gracefully shuts down all services in the container with a timeout
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.Cleanup(ctx)
}
