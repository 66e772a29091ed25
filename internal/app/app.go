// Package app initializes and holds long-lived application services,
// acting as a dependency injection container. It is built once at
// startup and passed to the commands that need it, and is designed to
// fail fast if any critical service cannot be initialized.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/harvester-hq/harvester/internal/config"
	"github.com/harvester-hq/harvester/internal/crawler"
	"github.com/harvester-hq/harvester/internal/crawlers/directory"
	"github.com/harvester-hq/harvester/internal/crawlers/web"
	"github.com/harvester-hq/harvester/internal/dispatch"
	"github.com/harvester-hq/harvester/internal/id/token"
	"github.com/harvester-hq/harvester/internal/ingest"
	"github.com/harvester-hq/harvester/internal/logging"
	"github.com/harvester-hq/harvester/internal/metrics"
	"github.com/harvester-hq/harvester/internal/queue"
	"github.com/harvester-hq/harvester/internal/source"
)

// App holds the shared, long-lived services: logger, database pool,
// broker client, dispatcher, and the source and crawler registries.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	pool       *pgxpool.Pool
	publisher  queue.Publisher
	pipeline   ingest.Pipeline
	dispatcher *dispatch.Dispatcher
	sources    *source.Registry
	crawlers   *crawler.Registry
}

// New builds the service graph described by cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	pool, err := newPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(ctx, cfg.Queue, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// The real pipeline is an external collaborator; this service only
	// dispatches into it. NoOp stands in until one is wired up.
	pipeline := ingest.Pipeline(ingest.NoOpPipeline{})

	dispatcher := dispatch.New(publisher, pipeline, dispatch.Config{Eager: cfg.Dispatch.Eager}, logger)
	sources := source.NewRegistry(pool, token.New(), logger)

	crawlers := crawler.NewRegistry()
	if err := crawlers.Register(web.Name, web.New(dispatcher, web.Config{
		UserAgent: cfg.Crawler.UserAgent,
		MaxDepth:  cfg.Crawler.MaxDepth,
		Timeout:   cfg.CrawlTimeout(),
	}, logger)); err != nil {
		pool.Close()
		return nil, err
	}
	if err := crawlers.Register(directory.Name, directory.New(dispatcher, logger)); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("queue_provider", cfg.Queue.Provider),
		zap.Bool("eager_dispatch", cfg.Dispatch.Eager),
	)
	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		publisher:  publisher,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		sources:    sources,
		crawlers:   crawlers,
	}, nil
}

func newPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnLifetime() > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnLifetime()
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

func newPublisher(ctx context.Context, cfg config.QueueConfig, logger *zap.Logger) (queue.Publisher, error) {
	switch cfg.Provider {
	case config.QueueProviderPubSub:
		logger.Info("connecting to GCP Pub/Sub", zap.String("topic", cfg.TopicID))
		pub, err := queue.NewPubSubPublisher(ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return nil, fmt.Errorf("init queue: %w", err)
		}
		return pub, nil
	case config.QueueProviderNoop:
		logger.Info("using no-op queue provider; async dispatches are discarded")
		return queue.NoOpPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown queue provider %q", cfg.Provider)
	}
}

// NewSubscriber opens the broker subscription for the worker loop.
func (a *App) NewSubscriber(ctx context.Context) (queue.Subscriber, error) {
	if a.cfg.Queue.Provider != config.QueueProviderPubSub {
		return nil, fmt.Errorf("worker requires queue.provider %q", config.QueueProviderPubSub)
	}
	sub, err := queue.NewPubSubSubscriber(ctx, a.cfg.Queue.ProjectID, a.cfg.Queue.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("init subscriber: %w", err)
	}
	return sub, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger { return a.logger }

// Sources returns the source registry.
func (a *App) Sources() *source.Registry { return a.sources }

// Dispatcher returns the ingest dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

// Crawlers returns the crawler registry.
func (a *App) Crawlers() *crawler.Registry { return a.crawlers }

// Pipeline returns the ingestion pipeline boundary.
func (a *App) Pipeline() ingest.Pipeline { return a.pipeline }

// Close tears down every long-lived service.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close publisher", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
