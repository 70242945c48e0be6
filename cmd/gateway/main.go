package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog_gateway/internal/breaker"
	"catalog_gateway/internal/cache"
	"catalog_gateway/internal/catalog"
	"catalog_gateway/internal/config"
	"catalog_gateway/internal/fetcher"
	"catalog_gateway/internal/httpapi"
	"catalog_gateway/internal/incremental"
	"catalog_gateway/internal/metrics"
	"catalog_gateway/internal/pricing"
	"catalog_gateway/internal/providers"
	"catalog_gateway/internal/queue"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/syncjob"
	"catalog_gateway/internal/task"
	"catalog_gateway/internal/utils"
)

func main() {
	if err := config.LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	utils.ConfigureLogging(utils.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)
	logger := utils.NewLogger("main")
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Gateway stopped with error", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()

	// Origin store
	var origin storage.OriginStore
	if cfg.Database.URL != "" {
		db, err := storage.NewDB(cfg.DBSettings())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		origin = storage.NewPostgresStore(db)
		rec.WatchDB(db.Conn().DB, "catalog")
		logger.Info("Using Postgres origin store")
	} else {
		origin = storage.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, using in-memory origin store")
	}

	// Cache and dispatch queue
	var kv cache.Store
	qCfg := queue.DefaultConfig(cfg.Sync.QueueName)
	qCfg.Capacity = cfg.Sync.QueueCapacity
	if cfg.UseRedis() {
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.Address = cfg.Redis.Address
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisStore, err := cache.NewRedisStore(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		kv = redisStore
		rec.WatchRedisPool(redisStore.Client().PoolStats)
		qCfg.Client = redisStore.Client()
		logger.Info("Using Redis cache and queue", "address", cfg.Redis.Address)
	} else {
		kv = cache.NewMemoryStore(cfg.Catalog.MemoryCacheSize)
		logger.Warn("REDIS_ADDRESS not set, using in-memory cache and queue")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Warn("Failed to close cache", "error", err)
		}
	}()
	syncQ, err := queue.New(qCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sync queue: %w", err)
	}

	// Providers
	if cfg.Catalog.ProvidersFile != "" {
		seed, err := providers.LoadSeedFile(cfg.Catalog.ProvidersFile)
		if err != nil {
			return err
		}
		if err := providers.Seed(ctx, origin, seed); err != nil {
			return err
		}
		logger.Info("Seeded providers", "count", len(seed), "file", cfg.Catalog.ProvidersFile)
	}
	var registryOpts []providers.RegistryOption
	if cfg.Catalog.CredentialsKey != "" {
		sealer, err := providers.NewSealerFromBase64(cfg.Catalog.CredentialsKey)
		if err != nil {
			return fmt.Errorf("invalid PROVIDER_CREDENTIALS_KEY: %w", err)
		}
		registryOpts = append(registryOpts, providers.WithSealer(sealer))
	}
	registry := providers.NewRegistry(origin, registryOpts...)
	if err := registry.Reload(ctx); err != nil {
		return err
	}
	if registry.Len() == 0 {
		logger.Warn("No enabled providers; the catalog will be empty")
	}

	// Catalog engine
	overrides, err := pricing.LoadOverrides(cfg.Catalog.OverridesPath)
	if err != nil {
		return err
	}
	policy, err := cfg.FamilyPolicy()
	if err != nil {
		return err
	}
	detector, err := incremental.NewDetector(cfg.Catalog.CriticalFields)
	if err != nil {
		return err
	}

	breakers := breaker.NewRegistry(cfg.Breaker, time.Now)
	orchestrator := fetcher.NewOrchestrator(cfg.Fetch, breakers, policy, rec)
	updater := incremental.NewUpdater(origin, kv, detector, policy, cfg.Catalog.EntryTTL, rec)

	tasks := task.NewSupervisor(ctx, 64)
	hierarchy := catalog.NewHierarchy(cfg.CatalogSettings(), catalog.Deps{
		Cache:     kv,
		Fetcher:   orchestrator,
		Providers: registry,
		Updater:   updater,
		Origin:    origin,
		Resolver:  pricing.NewResolver(origin, overrides),
		Policy:    policy,
		Tasks:     tasks,
		Metrics:   rec,
	})

	syncSvc := syncjob.NewService(cfg.SyncSettings(), syncjob.Deps{
		Jobs:      origin,
		Queue:     syncQ,
		Providers: registry,
		Fetcher:   orchestrator,
		Catalog:   hierarchy,
		Metrics:   rec,
	})
	if err := syncSvc.Start(ctx); err != nil {
		return err
	}

	if cfg.Catalog.ProviderReload > 0 {
		if _, err := tasks.Go("provider-reload", func(ctx context.Context) error {
			return reloadProviders(ctx, registry, cfg.Catalog.ProviderReload, logger)
		}); err != nil {
			return err
		}
	}

	// HTTP surface
	handler := httpapi.NewRouter(cfg, &httpapi.Dependencies{
		Catalog:   hierarchy,
		Sync:      syncSvc,
		Providers: registry,
		Metrics:   rec.Handler(),
		Health: []httpapi.HealthCheck{
			{Name: "origin", Critical: true, Check: origin.Health},
			{Name: "cache", Check: kv.Ping},
		},
	})

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Catalog gateway listening", "addr", addr, "providers", registry.Len())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", "error", err)
	}

	// Running jobs are cancelled and still recorded as failed.
	if !syncSvc.Stop(20 * time.Second) {
		logger.Warn("Sync workers did not stop in time")
	}
	if !tasks.Stop(10 * time.Second) {
		logger.Warn("Background tasks did not stop in time")
	}
	if err := syncQ.Close(); err != nil {
		logger.Warn("Failed to close sync queue", "error", err)
	}

	logger.Info("Gateway exited")
	return nil
}

func reloadProviders(ctx context.Context, registry *providers.Registry, interval time.Duration, logger *utils.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := registry.Reload(ctx); err != nil {
				logger.Warn("Provider reload failed", "error", err)
			}
		}
	}
}
