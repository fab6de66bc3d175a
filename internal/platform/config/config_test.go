package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SANCTION_TIMEZONE", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 5*time.Second, cfg.Sanctions.StoreTimeout)
	assert.Equal(t, 5, cfg.Sanctions.TxMaxAttempts)
	assert.Equal(t, 100, cfg.Sanctions.SweepBatchSize)
	assert.Equal(t, time.UTC, cfg.Sanctions.Location)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SWEEP_BATCH_SIZE", "25")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("SANCTION_TIMEZONE", "Asia/Manila")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 25, cfg.Sanctions.SweepBatchSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Sanctions.StoreTimeout)
	assert.Equal(t, "Asia/Manila", cfg.Sanctions.Location.String())
}

func TestFromEnvRejectsIncompleteBackends(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "firestore")
	_, err = FromEnv()
	assert.Error(t, err)
}
