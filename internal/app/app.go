package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/EcommerceGo/storefront/internal/auth"
	"github.com/utafrali/EcommerceGo/storefront/internal/config"
	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/storefront/internal/event"
	handler "github.com/utafrali/EcommerceGo/storefront/internal/handler/http"
	postgresrepo "github.com/utafrali/EcommerceGo/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/EcommerceGo/storefront/internal/repository/redis"
	"github.com/utafrali/EcommerceGo/storefront/internal/service"
	"github.com/utafrali/EcommerceGo/storefront/internal/store"
	"github.com/utafrali/EcommerceGo/storefront/internal/syncer"
	"github.com/utafrali/EcommerceGo/storefront/pkg/connectivity"
	"github.com/utafrali/EcommerceGo/storefront/pkg/database"
	"github.com/utafrali/EcommerceGo/storefront/pkg/health"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/EcommerceGo/storefront/pkg/kafka"
	"github.com/utafrali/EcommerceGo/storefront/pkg/middleware"
	"github.com/utafrali/EcommerceGo/storefront/pkg/offline"
	"github.com/utafrali/EcommerceGo/storefront/pkg/tracing"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	probeTimeout    = 5 * time.Second
	healthTimeout   = 3 * time.Second
	requestSlack    = 5 * time.Second
	slowQuery       = 200 * time.Millisecond
)

// App wires together all dependencies and runs the storefront sync service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	monitor   *connectivity.Monitor
	queue     *offline.Queue
	cartStore *store.Store
	wishStore *store.Store
	breaker   *httpclient.CircuitBreakerClient

	rdb      *redis.Client
	pool     *pgxpool.Pool
	producer *pkgkafka.Producer

	shutdownTracer tracing.ShutdownFunc
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	healthHandler := health.NewHandler()
	healthHandler.SetTimeout(healthTimeout)

	// Local persistence.
	persister, err := a.openPersister(ctx, healthHandler)
	if err != nil {
		a.closeBackends()
		return nil, err
	}

	a.cartStore = store.New(domain.KindCart, persister, logger)
	a.wishStore = store.New(domain.KindWishlist, persister, logger)
	for _, st := range []*store.Store{a.cartStore, a.wishStore} {
		if err := st.Load(ctx); err != nil {
			logger.Warn("starting with an empty collection",
				slog.String("kind", st.Kind().String()),
				slog.String("error", err.Error()),
			)
		}
	}

	// Connectivity, offline queue and the backend client stack.
	a.monitor = connectivity.NewMonitor(cfg.StartOnline, logger)
	a.queue = offline.New(a.monitor, logger, offline.Options{
		MaxLen:     cfg.OfflineQueueMax,
		ReplayRate: cfg.OfflineReplayRPS,
	})

	retryCfg := cfg.HTTPClient()
	client := httpclient.New(retryCfg)
	a.breaker = httpclient.NewCircuitBreakerClient(client, cfg.CircuitBreaker(), logger)
	remote := syncer.NewRemote(cfg.APIURL, a.breaker)
	runner := httpclient.NewOfflineClient(a.monitor, a.queue, logger)
	adapter := syncer.NewAdapter(remote, runner, a.monitor, logger).WithCallBudget(retryCfg.Budget())
	requestTimeout := retryCfg.Budget() + requestSlack

	healthHandler.RegisterOptional("storefront_api", func(context.Context) error {
		if a.breaker.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		if !a.monitor.Online() {
			return errors.New("offline")
		}
		return nil
	})

	// Sync events.
	var events event.Publisher = event.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	cartService := service.NewCartService(a.cartStore, adapter, events, logger)
	wishlistService := service.NewWishlistService(a.wishStore, adapter, events, logger)
	reconciler := service.NewReconciler(cartService, wishlistService, adapter, events, logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSOrigins

	router := handler.NewRouter(handler.RouterConfig{
		Cart:      handler.NewCartHandler(cartService, logger),
		Wishlist:  handler.NewWishlistHandler(wishlistService, logger),
		Sync:      handler.NewSyncHandler(reconciler, cartService, wishlistService, a.monitor, a.queue, logger),
		Health:    healthHandler,
		Inspector: auth.NewInspector(cfg.JWTSecret),
		CORS:      corsCfg,
		Logger:    logger,

		RequestTimeout: requestTimeout,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + requestSlack,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// openPersister connects the configured persistence backend and registers
// its health check.
func (a *App) openPersister(ctx context.Context, h *health.Handler) (store.Persister, error) {
	switch a.cfg.Persistence {
	case config.PersistenceRedis:
		rdb, err := database.NewRedisClient(ctx, a.cfg.Redis(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		h.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		a.logger.Info("connected to Redis",
			slog.String("addr", a.cfg.RedisAddr),
			slog.Int("db", a.cfg.RedisDB),
		)
		return redisrepo.NewCollectionRepository(rdb, a.cfg.Namespace, a.cfg.CollectionTTLDuration()), nil

	case config.PersistencePostgres:
		pgCfg := a.cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		if err := database.RunMigrations(ctx, pool, postgresrepo.Migrations(), a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool); err != nil {
			a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		h.Register("postgres", pool.Ping)
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.String("db", pgCfg.DBName),
		)
		return postgresrepo.NewCollectionRepository(pool, a.cfg.Namespace, database.QueryTracer{
			SlowThreshold: slowQuery,
			Logger:        a.logger,
		}), nil

	default:
		a.logger.Info("collections are kept in memory only")
		return store.NewMemoryPersister(), nil
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if interval := a.cfg.ProbeInterval(); interval > 0 {
		probe := httpclient.New(httpclient.Config{
			MaxRetries:      0,
			BackoffFactor:   1,
			Timeout:         probeTimeout,
			MaxConnsPerHost: 2,
		})
		go a.monitor.Probe(ctx, probe, a.cfg.APIURL, interval)
		a.logger.Info("connectivity probe started", slog.Duration("interval", interval))
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Replay what can still be delivered, then stop the queue.
	if a.monitor.Online() && a.queue.Len() > 0 {
		a.queue.Drain(shutdownCtx)
	}
	if n := a.queue.Len(); n > 0 {
		a.logger.Warn("dropping undelivered offline calls", slog.Int("pending", n))
	}
	a.queue.Close()

	for _, st := range []*store.Store{a.cartStore, a.wishStore} {
		if err := st.Close(shutdownCtx); err != nil {
			a.logger.Error("store flush error",
				slog.String("kind", st.Kind().String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	a.closeBackends()

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeBackends() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
