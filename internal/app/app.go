// Package app wires the sanction lifecycle from configuration. The server and
// the operator CLI share it so both run against the same store and publish
// the same lifecycle events.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/docstore/memory"
	pgstore "vehicle-sanctions/internal/docstore/postgres"
	redisstore "vehicle-sanctions/internal/docstore/redis"
	"vehicle-sanctions/internal/platform/config"
	platformkafka "vehicle-sanctions/internal/platform/kafka"
	"vehicle-sanctions/internal/platform/postgres"
	platformredis "vehicle-sanctions/internal/platform/redis"
	"vehicle-sanctions/internal/sanction/escalation"
	"vehicle-sanctions/internal/sanction/maintenance"
	"vehicle-sanctions/internal/sanction/metrics"
	"vehicle-sanctions/internal/sanction/service"
	audit "vehicle-sanctions/pkg/platform/audit"
	"vehicle-sanctions/pkg/platform/audit/publisher"
	kafkapublisher "vehicle-sanctions/pkg/platform/audit/publishers/kafka"
	auditmemory "vehicle-sanctions/pkg/platform/audit/store/memory"
	auditpostgres "vehicle-sanctions/pkg/platform/audit/store/postgres"
)

const (
	defaultEventBuffer = 256
	topicPartitions    = 3
	bootstrapTimeout   = 15 * time.Second
)

// App holds the wired lifecycle components and the resources they own.
type App struct {
	Store       docstore.Store
	Service     *service.Service
	Maintenance *maintenance.Runner
	// Events is the local lifecycle event log. It lives in the postgres
	// database when that backend is configured and in memory otherwise.
	Events audit.Store

	closers []func() error
}

type options struct {
	registerer prometheus.Registerer
}

type Option func(o *options)

// WithRegisterer registers sanction metrics with reg instead of the default
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// Build opens the configured store and event sink and wires the service on
// top of them. Close releases everything Build opened.
func Build(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	bootCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	a := &App{}

	store, db, err := openStore(bootCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	if err := a.openEventLog(bootCtx, db); err != nil {
		_ = a.Close()
		return nil, err
	}

	events, err := a.eventPublisher(bootCtx, cfg.Kafka, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Service = service.New(store, escalation.NewPolicy(cfg.Sanctions.Location),
		service.WithLogger(logger),
		service.WithMetrics(metrics.NewWithRegisterer(o.registerer)),
		service.WithAuditPublisher(events),
		service.WithTxMaxAttempts(cfg.Sanctions.TxMaxAttempts),
		service.WithSweepBatchSize(cfg.Sanctions.SweepBatchSize),
		service.WithStoreTimeout(cfg.Sanctions.StoreTimeout),
	)
	a.Maintenance = maintenance.New(a.Service, maintenance.WithLogger(logger))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore returns the document store and, for the postgres backend, the
// database it owns. The store's Close also closes the database.
func openStore(ctx context.Context, cfg config.Server, logger *slog.Logger) (docstore.Store, *sql.DB, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := pgstore.New(db, pgstore.WithLogger(logger))
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		logger.InfoContext(ctx, "using postgres document store")
		return store, db, nil
	case config.StoreRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "using redis document store")
		return redisstore.New(client.Client), nil, nil
	case config.StoreMemory:
		logger.WarnContext(ctx, "using in-memory document store; data is lost on exit")
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Store)
	}
}

// openEventLog keeps lifecycle events next to the documents when a database
// is available. Publisher closers run before the store closer, so buffered
// events are flushed while the database is still open.
func (a *App) openEventLog(ctx context.Context, db *sql.DB) error {
	if db == nil {
		a.Events = auditmemory.NewInMemoryStore()
		return nil
	}
	log := auditpostgres.New(db)
	if err := log.EnsureSchema(ctx); err != nil {
		return err
	}
	a.Events = log
	return nil
}

// eventPublisher publishes lifecycle events to Kafka when brokers are
// configured, falling back to the in-process event log while the broker is
// unreachable. Without brokers events go to the event log only.
func (a *App) eventPublisher(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (service.AuditPublisher, error) {
	client, err := platformkafka.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		local := publisher.NewPublisher(a.Events,
			publisher.WithAsyncBuffer(defaultEventBuffer),
			publisher.WithLogger(logger),
		)
		a.closers = append(a.closers, func() error {
			local.Close()
			return nil
		})
		return local, nil
	}

	a.closers = append(a.closers, func() error {
		closeKafka(client)
		return nil
	})
	if err := platformkafka.EnsureTopic(ctx, client, cfg.Topic, topicPartitions); err != nil {
		logger.WarnContext(ctx, "could not ensure lifecycle topic; publishing anyway",
			"topic", cfg.Topic,
			"error", err,
		)
	}
	logger.InfoContext(ctx, "publishing lifecycle events to kafka", "topic", cfg.Topic)
	return kafkapublisher.New(client, cfg.Topic,
		kafkapublisher.WithFallback(a.Events),
		kafkapublisher.WithLogger(logger),
	), nil
}

func closeKafka(client *kgo.Client) {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Flush(flushCtx)
	client.Close()
}
