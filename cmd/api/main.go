package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadmarket_backend/internal/adapters/storage"
	"leadmarket_backend/internal/directory"
	"leadmarket_backend/internal/fanout"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/http/router"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/internal/notification"
	"leadmarket_backend/internal/scheduler"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/db"
	"leadmarket_backend/platform/events"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var (
		stores leads.Stores
		dirs   leads.Directories
		health apphttp.HealthChecker
	)
	if cfg.UsesMemoryStorage() {
		mem := directory.NewMemory()
		stores = leads.NewMemoryStores()
		dirs = leads.Directories{Artisans: mem, Clients: mem, Users: mem}
		log.Warn("memory storage driver in use; state is lost on restart and the directory starts empty")
	} else {
		pool := connectDatabase(ctx, cfg, log)
		defer pool.Close()
		health = db.NewPoolAdapter(pool)
		stores = leads.NewPostgresStores(pool, cfg.GetDBQueryTimeout())

		pg := directory.NewPostgres(pool, cfg.GetDBQueryTimeout())
		cached, err := directory.NewCached(pg, pg, cfg.GetDirectoryCacheBytes(), cfg.GetDirectoryCacheTTL())
		if err != nil {
			log.Error("failed to initialize directory cache", "error", err)
			panic("failed to initialize directory cache: " + err.Error())
		}
		defer cached.Close()
		dirs = leads.Directories{Artisans: cached, Clients: cached, Users: pg}
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	hub := fanout.NewHub(cfg, initRelay(cfg, log), log)
	hub.Start(ctx)
	defer hub.Stop()
	fanout.Subscribe(eventBus, hub)

	emailScheduler, closeScheduler := initEmailScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}
	if emailScheduler != nil {
		notification.New(dirs.Artisans, emailScheduler, log).RegisterHandlers(eventBus)
	}
	// Let in-flight event handlers finish before the scheduler and hub close.
	defer eventBus.Wait()

	thumbnails := initThumbnails(ctx, cfg, stores.Files, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(stores, dirs, thumbnails, eventBus, val, log)
	realtime := fanout.NewTransport(hub, cfg, websocketOrigins(cfg), log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			realtime,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Streaming handlers only return once the hub drops their connections.
	srv.RegisterOnShutdown(hub.Stop)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) *pgxpool.Pool {
	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	log.Info("database connection established")
	return pool
}

func initRelay(cfg *config.Config, log *logger.Logger) fanout.Relay {
	switch cfg.GetFanoutRelay() {
	case config.FanoutRelayRedis:
		relay, err := fanout.NewRedisRelay(cfg)
		if err != nil {
			log.Error("failed to initialize redis relay", "error", err)
			panic("failed to initialize redis relay: " + err.Error())
		}
		log.Info("fanout relay enabled", "relay", "redis")
		return relay
	case config.FanoutRelayNATS:
		relay, err := fanout.NewNATSRelay(cfg.GetNATSURL())
		if err != nil {
			log.Error("failed to initialize nats relay", "error", err)
			panic("failed to initialize nats relay: " + err.Error())
		}
		log.Info("fanout relay enabled", "relay", "nats")
		return relay
	default:
		log.Info("fanout relay disabled; realtime events stay on this instance")
		return nil
	}
}

func initEmailScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.EmailScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; lead emails disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize email scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initThumbnails returns nil when MinIO is not configured or the store keeps no files.
func initThumbnails(ctx context.Context, cfg config.MinIOConfig, files ports.LeadFileIndex, log *logger.Logger) ports.ThumbnailProvider {
	if !cfg.IsMinIOEnabled() || files == nil {
		log.Info("lead thumbnails disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	bucket := cfg.GetMinioBucketLeadFiles()
	if err := withRetry(ctx, log, "ensure lead-files bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "leadFilesBucket", bucket)

	return storage.NewThumbnailProvider(files, storageSvc, bucket, log)
}

// websocketOrigins converts CORS origins to the host patterns the websocket accept expects.
func websocketOrigins(cfg config.HTTPConfig) []string {
	if cfg.GetCORSAllowAll() {
		return nil
	}
	hosts := make([]string, 0, len(cfg.GetCORSOrigins()))
	for _, origin := range cfg.GetCORSOrigins() {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
