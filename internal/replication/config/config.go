package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	apperrors "pos-replicator/internal/shared/errors"

	"github.com/caarlos0/env/v6"
)

// MongoConfig locates the two document stores.
type MongoConfig struct {
	PrimaryURI      string        `env:"PRIMARY_MONGODB_URI" json:"-"`
	PrimaryDatabase string        `env:"PRIMARY_DATABASE" envDefault:"pos" json:"primary_database"`
	ReplicaURI      string        `env:"REPLICA_MONGODB_URI" envDefault:"mongodb://localhost:27017" json:"-"`
	ReplicaDatabase string        `env:"REPLICA_DATABASE" envDefault:"pos" json:"replica_database"`
	ConnectTimeout  time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s" json:"connect_timeout"`
}

// SyncConfig controls the replication engine.
type SyncConfig struct {
	// IntervalMillis between scheduled passes; zero or negative disables the timer.
	IntervalMillis int64 `env:"SYNC_INTERVAL_MS" envDefault:"300000" json:"interval_ms"`
	// PassTimeout bounds a whole pass; zero means unbounded.
	PassTimeout          time.Duration `env:"SYNC_PASS_TIMEOUT" envDefault:"0s" json:"pass_timeout"`
	ExcludedCollections  []string      `env:"SYNC_EXCLUDED_COLLECTIONS" envSeparator:"," json:"excluded_collections"`
	ProvenanceCollection string        `env:"SYNC_PROVENANCE_COLLECTION" envDefault:"sync_provenance" json:"provenance_collection"`
	// CollectionFilter is an optional CEL expression over `name`.
	CollectionFilter string   `env:"SYNC_COLLECTION_FILTER" json:"collection_filter,omitempty"`
	TimestampFields  []string `env:"SYNC_TIMESTAMP_FIELDS" envSeparator:"," envDefault:"updatedAt,createdAt" json:"timestamp_fields"`
	SeedOnStartup    bool     `env:"SYNC_SEED_ON_STARTUP" envDefault:"true" json:"seed_on_startup"`
	BatchSize        int      `env:"SYNC_BATCH_SIZE" envDefault:"500" json:"batch_size"`
}

// Exclusions returns the explicitly excluded collections plus the provenance collection.
func (c SyncConfig) Exclusions() []string {
	out := make([]string, 0, len(c.ExcludedCollections)+1)
	for _, name := range c.ExcludedCollections {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	if c.ProvenanceCollection != "" {
		out = append(out, c.ProvenanceCollection)
	}
	return out
}

// RedisConfig configures the optional pass journal.
type RedisConfig struct {
	Enabled         bool   `env:"REDIS_ENABLED" envDefault:"false" json:"enabled"`
	Host            string `env:"REDIS_HOST" envDefault:"localhost" json:"host"`
	Port            string `env:"REDIS_PORT" envDefault:"6379" json:"port"`
	Password        string `env:"REDIS_PASSWORD" json:"-"`
	Database        int    `env:"REDIS_DB" envDefault:"0" json:"database"`
	MaxRetries      int    `env:"REDIS_MAX_RETRIES" envDefault:"3" json:"max_retries"`
	PoolSize        int    `env:"REDIS_POOL_SIZE" envDefault:"10" json:"pool_size"`
	MinIdleConns    int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2" json:"min_idle_conns"`
	EnableTLS       bool   `env:"REDIS_TLS" envDefault:"false" json:"enable_tls"`
	ConnMaxIdleTime string `env:"REDIS_CONN_MAX_IDLE_TIME" envDefault:"30m" json:"conn_max_idle_time"`
	ConnMaxLifetime string `env:"REDIS_CONN_MAX_LIFETIME" envDefault:"1h" json:"conn_max_lifetime"`
	PassStream      string `env:"REDIS_PASS_STREAM" envDefault:"pos:sync:passes" json:"pass_stream"`
	StreamMaxLength int64  `env:"REDIS_STREAM_MAX_LENGTH" envDefault:"10000" json:"stream_max_length"`
}

// GetAddr returns host:port.
func (c *RedisConfig) GetAddr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ServerConfig is the HTTP listener of the host process.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0" json:"host"`
	Port string `env:"SERVER_PORT" envDefault:"8080" json:"port"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ReplicationConfig holds all configuration for the replication service.
type ReplicationConfig struct {
	Mongo  MongoConfig  `json:"mongo"`
	Sync   SyncConfig   `json:"sync"`
	Redis  RedisConfig  `json:"redis"`
	Server ServerConfig `json:"server"`
}

// LoadConfig reads the configuration from environment variables and validates it.
func LoadConfig() (*ReplicationConfig, error) {
	cfg := &ReplicationConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, apperrors.NewValidationError("failed to load configuration from environment").
			WithCause(fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and repairs values that have a safe fallback.
func (c *ReplicationConfig) Validate() error {
	if strings.TrimSpace(c.Mongo.PrimaryURI) == "" {
		return apperrors.NewValidationError("PRIMARY_MONGODB_URI environment variable is not set").
			WithCause(apperrors.ErrInvalidConfig)
	}
	if c.Sync.BatchSize <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("SYNC_BATCH_SIZE=%d", c.Sync.BatchSize)).
			WithCause(apperrors.ErrInvalidBatchSize)
	}
	if c.Sync.PassTimeout < 0 {
		c.Sync.PassTimeout = 0
	}
	if c.Mongo.ConnectTimeout <= 0 {
		c.Mongo.ConnectTimeout = 10 * time.Second
	}
	if len(c.Sync.TimestampFields) == 0 {
		c.Sync.TimestampFields = []string{"updatedAt", "createdAt"}
	}
	if c.Redis.PassStream == "" {
		c.Redis.PassStream = "pos:sync:passes"
	}
	if c.Redis.StreamMaxLength <= 0 {
		c.Redis.StreamMaxLength = 10000
	}
	return nil
}

// DefaultReplicationConfig returns a configuration suitable for local development.
func DefaultReplicationConfig() *ReplicationConfig {
	return &ReplicationConfig{
		Mongo: MongoConfig{
			PrimaryURI:      "mongodb://localhost:27017",
			PrimaryDatabase: "pos",
			ReplicaURI:      "mongodb://localhost:27018",
			ReplicaDatabase: "pos",
			ConnectTimeout:  10 * time.Second,
		},
		Sync: SyncConfig{
			IntervalMillis:       300000,
			ProvenanceCollection: "sync_provenance",
			TimestampFields:      []string{"updatedAt", "createdAt"},
			SeedOnStartup:        true,
			BatchSize:            500,
		},
		Redis: RedisConfig{
			Host:            "localhost",
			Port:            "6379",
			MaxRetries:      3,
			PoolSize:        10,
			MinIdleConns:    2,
			ConnMaxIdleTime: "30m",
			ConnMaxLifetime: "1h",
			PassStream:      "pos:sync:passes",
			StreamMaxLength: 10000,
		},
		Server: ServerConfig{Host: "0.0.0.0", Port: "8080"},
	}
}
