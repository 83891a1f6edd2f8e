package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/visits/internal/backoff"
	"github.com/MrSnakeDoc/visits/internal/cache"
	"github.com/MrSnakeDoc/visits/internal/config"
	"github.com/MrSnakeDoc/visits/internal/coordinator"
	"github.com/MrSnakeDoc/visits/internal/domain"
	"github.com/MrSnakeDoc/visits/internal/httpserver"
	"github.com/MrSnakeDoc/visits/internal/httpserver/deps"
	"github.com/MrSnakeDoc/visits/internal/logger"
	"github.com/MrSnakeDoc/visits/internal/metrics"
	"github.com/MrSnakeDoc/visits/internal/postgres"
	"github.com/MrSnakeDoc/visits/internal/redis"
	"github.com/MrSnakeDoc/visits/internal/scheduler"
	"github.com/MrSnakeDoc/visits/internal/service"
	pgstore "github.com/MrSnakeDoc/visits/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/visits/internal/store/redis"
	sqlitestore "github.com/MrSnakeDoc/visits/internal/store/sqlite"
	"github.com/MrSnakeDoc/visits/internal/version"
)

// closer releases one resource on shutdown.
type closer struct {
	name string
	fn   func() error
}

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	server  *httpserver.Server
	warmer  *scheduler.CacheWarmer
	closers []closer
}

// New loads the configuration and builds every component. The store must be
// reachable; the cache may start degraded.
func New(ctx context.Context) (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	a := &App{cfg: cfg, logger: loggerClient}

	m := metrics.New()

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	instrumented := metrics.InstrumentStore(store, m)

	cacheLayer, probe := a.openCache(ctx, m)

	coord, err := coordinator.New(instrumented, cacheLayer, loggerClient, coordinator.Config{
		Policy:       cfg.WritePolicy,
		TTL:          cfg.CacheTTL,
		StoreTimeout: cfg.StoreTimeout,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to build coordinator: %w", err)
	}

	svc := service.New(instrumented, coord, loggerClient, service.Options{
		DevMode:      cfg.DevMode,
		StoreTimeout: cfg.StoreTimeout,
	})

	var warmTrigger func()
	if probe != nil && !cfg.DevMode {
		a.warmer = scheduler.NewCacheWarmer(svc, loggerClient, cfg.CacheWarmInterval)
		warmTrigger = a.warmer.Trigger
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		Service:         svc,
		Metrics:         m,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		CacheBackend:    cacheBackendName(cfg),
		CacheProbe:      probe,
		WarmTrigger:     warmTrigger,
		ReadyTimeout:    cfg.PingTimeout,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitPerMin: cfg.RateLimitPerMin,
	}

	a.server = httpserver.New(cfg, loggerClient, d)

	return a, nil
}

// Run serves HTTP until SIGINT/SIGTERM or a server error, then shuts down
// gracefully and releases store and cache connections.
func (a *App) Run() error {
	a.logger.Infof("🚀 Starting %s on %s", version.String(), a.cfg.ListenPort)
	a.logger.Info("counter configuration",
		logger.Bool("dev_mode", a.cfg.DevMode),
		logger.String("write_policy", string(a.cfg.WritePolicy)),
		logger.Duration("cache_ttl", a.cfg.CacheTTL),
		logger.String("store", a.cfg.StoreDriver),
		logger.String("cache", cacheBackendName(a.cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.warmer != nil {
		a.warmer.Start(ctx)
		a.logger.Info("cache warmer started",
			logger.Duration("interval", a.cfg.CacheWarmInterval))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("⏳ Shutting down gracefully...")

		if a.warmer != nil {
			a.warmer.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.close()
	if err != nil {
		return err
	}

	a.logger.Info("✅ visits stopped cleanly")
	_ = a.logger.Sync()
	return nil
}

func (a *App) openStore(ctx context.Context) (domain.CounterStore, error) {
	cfg := a.cfg

	if cfg.DevMode {
		// Never queried in dev mode; an in-memory database keeps the wiring uniform.
		a.logger.Warn("dev mode enabled: visits are not recorded and /visits reports -1")
		s, err := sqlitestore.Open(":memory:", false)
		if err != nil {
			return nil, fmt.Errorf("failed to open dev store: %w", err)
		}
		a.onClose("sqlite", s.Close)
		return s, nil
	}

	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		a.logger.Infof("Opening SQLite store at %s", cfg.SQLitePath)
		s, err := sqlitestore.Open(cfg.SQLitePath, cfg.DBVerbose)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.onClose("sqlite", s.Close)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil

	default:
		a.logger.Info("Connecting to PostgreSQL")
		pool, err := postgres.New(ctx, postgres.ConnectOptions{
			DSN:      cfg.DatabaseURL,
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
			Retry:    a.retryPolicy(),
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.onClose("postgres", func() error { pool.Close(); return nil })

		s := pgstore.NewStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("PostgreSQL initialized successfully")
		return s, nil
	}
}

// openCache returns the cache layer and its readiness probe. The probe is nil
// when caching is off.
func (a *App) openCache(ctx context.Context, m *metrics.Metrics) (domain.CacheLayer, func(context.Context) error) {
	cfg := a.cfg

	var backend cache.Backend
	switch cacheBackendName(cfg) {
	case config.CacheBackendNone:
		a.logger.Info("cache disabled, every read hits the store")
		return cache.Disabled{}, nil

	case config.CacheBackendMemory:
		backend = cache.NewMemory(time.Now)

	default:
		opts := redis.ConnectOptions{
			Addr:         cfg.RedisAddr,
			User:         cfg.RedisUser,
			Password:     cfg.RedisPassword,
			RedisDB:      cfg.RedisDB,
			DialTimeout:  cfg.RedisDT,
			ReadTimeout:  cfg.RedisRT,
			WriteTimeout: cfg.RedisWT,
			PoolSize:     cfg.RedisPoolSize,
			Retry:        a.retryPolicy(),
		}

		a.logger.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, opts, a.logger)
		if err != nil {
			// Reads fall through to the store until Redis comes back.
			a.logger.Error("Redis unreachable, starting with a degraded cache",
				logger.Error(err))
			client = redis.NewClient(opts)
		} else {
			a.logger.Info("Redis initialized successfully")
		}
		a.onClose("redis", client.Close)
		backend = redisstore.NewCountCache(client, cfg.CacheKey)
	}

	g := cache.NewGuarded(backend, a.logger, cache.Options{
		Timeout:          cfg.CacheTimeout,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
		Observer:         m,
	})
	return g, g.Probe
}

func (a *App) retryPolicy() backoff.Policy {
	return backoff.Policy{
		ConnectTimeout: a.cfg.ConnectTimeout,
		RetryInterval:  a.cfg.RetryInterval,
		MaxWait:        a.cfg.RetryMaxWait,
		PingTimeout:    a.cfg.PingTimeout,
		WarnThreshold:  a.cfg.WarnThreshold,
	}
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// close releases resources in reverse order of acquisition.
func (a *App) close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warnf("failed to close %s: %v", c.name, err)
			errs = append(errs, err)
			continue
		}
		a.logger.Infof("✅ %s closed cleanly", c.name)
	}
	a.closers = nil
	if len(errs) > 0 {
		a.logger.Debug("shutdown finished with errors", logger.Error(errors.Join(errs...)))
	}
}

func cacheBackendName(cfg *config.Config) string {
	if cfg.DevMode {
		return config.CacheBackendNone
	}
	return cfg.CacheBackend
}
