package config

import (
	"testing"
	"time"

	apperrors "pos-replicator/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PRIMARY_MONGODB_URI", "mongodb+srv://cloud.example.net")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "mongodb+srv://cloud.example.net", cfg.Mongo.PrimaryURI)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.ReplicaURI)
	assert.Equal(t, 10*time.Second, cfg.Mongo.ConnectTimeout)
	assert.Equal(t, int64(300000), cfg.Sync.IntervalMillis)
	assert.Zero(t, cfg.Sync.PassTimeout)
	assert.Equal(t, []string{"updatedAt", "createdAt"}, cfg.Sync.TimestampFields)
	assert.Equal(t, []string{"sync_provenance"}, cfg.Sync.Exclusions())
	assert.True(t, cfg.Sync.SeedOnStartup)
	assert.Equal(t, 500, cfg.Sync.BatchSize)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "pos:sync:passes", cfg.Redis.PassStream)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PRIMARY_MONGODB_URI", "mongodb://cloud:27017")
	t.Setenv("REPLICA_MONGODB_URI", "mongodb://lounge-pc:27017")
	t.Setenv("SYNC_INTERVAL_MS", "0")
	t.Setenv("SYNC_PASS_TIMEOUT", "90s")
	t.Setenv("SYNC_EXCLUDED_COLLECTIONS", "audit_log, tmp")
	t.Setenv("SYNC_PROVENANCE_COLLECTION", "origin_marks")
	t.Setenv("SYNC_COLLECTION_FILTER", `!name.startsWith("cache_")`)
	t.Setenv("SYNC_TIMESTAMP_FIELDS", "modifiedAt")
	t.Setenv("SYNC_SEED_ON_STARTUP", "false")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "redis.lan")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(0), cfg.Sync.IntervalMillis)
	assert.Equal(t, 90*time.Second, cfg.Sync.PassTimeout)
	assert.Equal(t, []string{"audit_log", "tmp", "origin_marks"}, cfg.Sync.Exclusions())
	assert.Equal(t, `!name.startsWith("cache_")`, cfg.Sync.CollectionFilter)
	assert.Equal(t, []string{"modifiedAt"}, cfg.Sync.TimestampFields)
	assert.False(t, cfg.Sync.SeedOnStartup)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.lan:6380", cfg.Redis.GetAddr())
}

func TestLoadConfig_RequiresPrimaryURI(t *testing.T) {
	t.Setenv("PRIMARY_MONGODB_URI", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestLoadConfig_RejectsBadValues(t *testing.T) {
	t.Setenv("PRIMARY_MONGODB_URI", "mongodb://cloud:27017")

	t.Run("batch size", func(t *testing.T) {
		t.Setenv("SYNC_BATCH_SIZE", "0")
		_, err := LoadConfig()
		assert.ErrorIs(t, err, apperrors.ErrInvalidBatchSize)
	})
	t.Run("unparseable interval", func(t *testing.T) {
		t.Setenv("SYNC_INTERVAL_MS", "five minutes")
		_, err := LoadConfig()
		assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	})
}

func TestDefaultReplicationConfig_IsValid(t *testing.T) {
	cfg := DefaultReplicationConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:6379", cfg.Redis.GetAddr())
}

func TestNewRedisClient(t *testing.T) {
	cfg := DefaultReplicationConfig().Redis
	cfg.Database = 3
	cfg.ConnMaxIdleTime = "not-a-duration"

	client := NewRedisClient(&cfg)
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 30*time.Minute, opts.ConnMaxIdleTime)
	assert.Equal(t, time.Hour, opts.ConnMaxLifetime)
	assert.Nil(t, opts.TLSConfig)
}
