package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend selects the document store adapter.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StorePostgres StoreBackend = "postgres"
	StoreRedis    StoreBackend = "redis"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	Store       StoreBackend
	Postgres    PostgresConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Sanctions   SanctionConfig
}

// PostgresConfig configures the database/sql pool behind the postgres document store.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the go-redis client behind the redis document store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures lifecycle event publishing. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// SanctionConfig holds the knobs of the lifecycle engine. The escalation
// policy itself is fixed and deliberately absent from here.
type SanctionConfig struct {
	// StoreTimeout bounds each store operation when the caller set no deadline.
	StoreTimeout time.Duration
	// TxMaxAttempts bounds the read-decide-write retries of a transaction.
	TxMaxAttempts int
	// SweepBatchSize is the number of sanctions or vehicles committed per batch.
	SweepBatchSize int
	// Location is the institution's time zone; working days are counted in it.
	Location *time.Location
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	loc, err := time.LoadLocation(getEnv("SANCTION_TIMEZONE", "UTC"))
	if err != nil {
		return Server{}, fmt.Errorf("load SANCTION_TIMEZONE: %w", err)
	}

	store := StoreBackend(strings.ToLower(getEnv("STORE_BACKEND", string(StoreMemory))))
	switch store {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return Server{}, fmt.Errorf("unknown STORE_BACKEND %q", store)
	}

	cfg := Server{
		Addr:        getEnv("SANCTIONS_ADDR", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Store:       store,
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:    getEnv("KAFKA_TOPIC", "sanction-lifecycle"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "vehicle-sanctions"),
		},
		Sanctions: SanctionConfig{
			StoreTimeout:   getDuration("STORE_TIMEOUT", 5*time.Second),
			TxMaxAttempts:  getInt("SANCTION_TX_MAX_ATTEMPTS", 5),
			SweepBatchSize: getInt("SWEEP_BATCH_SIZE", 100),
			Location:       loc,
		},
	}

	if cfg.Store == StorePostgres && cfg.Postgres.URL == "" {
		return Server{}, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	if cfg.Store == StoreRedis && cfg.Redis.URL == "" {
		return Server{}, fmt.Errorf("REDIS_URL is required for the redis store")
	}
	if cfg.Sanctions.TxMaxAttempts < 1 {
		cfg.Sanctions.TxMaxAttempts = 1
	}
	if cfg.Sanctions.SweepBatchSize < 1 {
		cfg.Sanctions.SweepBatchSize = 1
	}
	return cfg, nil
}

// IsProduction gates behaviour that must never run against live data.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
