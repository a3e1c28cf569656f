// Package app assembles the selection service and its infrastructure from config.
// Both the HTTP server and the operator CLI build through here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"stablehand/internal/membership"
	"stablehand/internal/platform/config"
	"stablehand/internal/platform/database"
	"stablehand/internal/platform/kafka"
	"stablehand/internal/platform/redis"
	"stablehand/internal/routine"
	"stablehand/internal/selection/archive"
	"stablehand/internal/selection/metrics"
	"stablehand/internal/selection/service"
	entrystore "stablehand/internal/selection/store/entry"
	historystore "stablehand/internal/selection/store/history"
	processstore "stablehand/internal/selection/store/process"
	"stablehand/internal/selection/turnorder"
	"stablehand/pkg/platform/audit"
	"stablehand/pkg/platform/audit/publisher"
	auditmemory "stablehand/pkg/platform/audit/store/memory"
	auditpostgres "stablehand/pkg/platform/audit/store/postgres"
	"stablehand/pkg/platform/audit/worker"
	txcontext "stablehand/pkg/platform/tx"
)

const auditBufferSize = 256

// App holds the wired components. Optional parts are nil when their
// backing infrastructure is not configured.
type App struct {
	Service  *service.Service
	Archiver *archive.Archiver
	Relay    *worker.Relay
	Metrics  *metrics.Metrics

	DB       *sql.DB
	Redis    *redis.Client
	Producer *kafka.Producer

	// Set only in memory mode.
	Members  *membership.InMemory
	Routines *routine.InMemory

	publisher *publisher.Publisher
	logger    *slog.Logger
}

// Options adjust what Build connects to.
type Options struct {
	// ApplySchema runs the idempotent schema before wiring Postgres stores.
	ApplySchema bool
	// Metrics overrides the default Prometheus-registered metrics.
	Metrics *metrics.Metrics
}

type stores struct {
	processes interface {
		service.ProcessStore
		archive.ProcessReader
	}
	entries interface {
		service.EntryStore
		archive.EntryReader
	}
	histories interface {
		service.HistoryStore
		archive.HistoryStore
	}
	members  service.MemberDirectory
	routines service.RoutineCatalog
	audit    audit.Store
}

// Build wires the service. With a database URL every store is Postgres and
// units of work run in SQL transactions; otherwise state is in memory.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{logger: logger, Metrics: opts.Metrics}
	if a.Metrics == nil {
		a.Metrics = metrics.New()
	}

	var st stores
	var tx service.StoreTx
	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db
		if opts.ApplySchema {
			if err := database.ApplySchema(ctx, db); err != nil {
				a.Close()
				return nil, err
			}
		}
		st = stores{
			processes: processstore.NewPostgres(db),
			entries:   entrystore.NewPostgres(db),
			histories: historystore.NewPostgres(db),
			members:   membership.NewPostgres(db),
			routines:  routine.NewPostgres(db),
			audit:     auditpostgres.New(db),
		}
		tx = txcontext.NewPostgres(db)
		// Sync so outbox rows join the caller's transaction.
		a.publisher = publisher.NewPublisher(st.audit, publisher.WithLogger(logger))
	} else {
		a.Members = membership.NewInMemory()
		a.Routines = routine.NewInMemory()
		st = stores{
			processes: processstore.NewInMemory(),
			entries:   entrystore.NewInMemory(),
			histories: historystore.NewInMemory(),
			members:   a.Members,
			routines:  a.Routines,
			audit:     auditmemory.NewInMemoryStore(),
		}
		a.publisher = publisher.NewPublisher(st.audit,
			publisher.WithAsyncBuffer(auditBufferSize),
			publisher.WithLogger(logger),
		)
		if cfg.SeedFile != "" {
			if err := LoadSeed(cfg.SeedFile, a.Members, a.Routines); err != nil {
				a.Close()
				return nil, err
			}
		}
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	if client != nil {
		a.Redis = client
		st.routines = routine.NewCached(st.routines, client, cfg.RoutineCacheTTL, logger)
	}

	if err := a.wireRelay(ctx, cfg, st.audit); err != nil {
		a.Close()
		return nil, err
	}

	a.Archiver = archive.New(st.processes, st.entries, st.histories,
		archive.WithLogger(logger),
		archive.WithMetrics(a.Metrics),
		archive.WithAuditPublisher(a.publisher),
		archive.WithConfig(cfg.Archive),
	)

	svcOpts := []service.Option{
		service.WithLogger(logger),
		service.WithAuditPublisher(a.publisher),
		service.WithMetrics(a.Metrics),
		service.WithArchiver(a.Archiver),
		service.WithPolicy(turnorder.Policy{
			QuotaRounding:      cfg.Selection.QuotaRounding,
			NewMemberPlacement: cfg.Selection.NewMemberPlacement,
		}),
	}
	if tx != nil {
		svcOpts = append(svcOpts, service.WithTx(tx))
	}
	a.Service = service.New(st.processes, st.entries, st.histories, st.members, st.routines, svcOpts...)
	return a, nil
}

// wireRelay starts publishing outbox rows to Kafka. The outbox only exists
// in Postgres, so memory mode never relays.
func (a *App) wireRelay(ctx context.Context, cfg *config.Config, store audit.Store) error {
	outbox, ok := store.(*auditpostgres.Store)
	if !ok || len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	producer, err := kafka.New(cfg.Kafka)
	if err != nil {
		return err
	}
	a.Producer = producer
	if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
		return fmt.Errorf("ensure audit topic: %w", err)
	}
	a.Relay = worker.NewRelay(outbox, producer, txcontext.NewPostgres(a.DB), a.logger,
		cfg.Kafka.RelayInterval, cfg.Kafka.RelayBatch)
	return nil
}

// Close drains the audit buffer and releases connections.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.Producer != nil {
		a.Producer.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Warn("database close failed", "error", err)
		}
	}
}
