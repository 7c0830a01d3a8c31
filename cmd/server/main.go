package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/events"
	"github.com/JonMunkholm/gradebook/internal/gradebook"
	"github.com/JonMunkholm/gradebook/internal/lock"
	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/store/memory"
	"github.com/JonMunkholm/gradebook/internal/store/postgres"
	"github.com/JonMunkholm/gradebook/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	store, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	if cfg.Tenant.DefaultID != "" {
		t := gradebook.Tenant{ID: cfg.Tenant.DefaultID, Name: cfg.Tenant.DefaultName}
		if err := store.EnsureTenant(ctx, t); err != nil {
			slog.Error("failed to ensure default tenant", "tenant_id", t.ID, "error", err)
			os.Exit(1)
		}
		slog.Info("default tenant ready", "tenant_id", t.ID)
	}

	// Tenant upload lock: Redis when configured, in-process otherwise
	var (
		locker gradebook.Locker
		local  *lock.LocalLocker
	)
	if cfg.Lock.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.Lock.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, cfg.Lock.TTL, cfg.Lock.Wait)
		slog.Info("using redis upload lock", "ttl", cfg.Lock.TTL)
	} else {
		local = lock.NewLocalLocker(cfg.Upload.MaxConcurrent, cfg.Lock.Wait)
		locker = local
		slog.Info("using in-process upload lock", "max_concurrent", cfg.Upload.MaxConcurrent)
	}

	// Upload events
	var bus *events.Bus
	if len(cfg.Events.KafkaBrokers) > 0 {
		bus, err = events.NewKafka(cfg.Events.KafkaBrokers, cfg.Events.Topic, cfg.Events.ConsumerGroup, slog.Default())
		if err != nil {
			slog.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		slog.Info("publishing upload events to kafka", "topic", bus.Topic(), "brokers", len(cfg.Events.KafkaBrokers))
	} else {
		bus = events.NewInProcess(cfg.Events.Topic, slog.Default())
	}
	defer bus.Close()

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	go func() {
		if err := bus.Consume(jobCtx, events.AuditLog(slog.Default())); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("audit consumer stopped", "error", err)
		}
	}()

	opts := gradebook.Options{
		Layout: gradebook.LayoutConfig{
			DateRow:         cfg.Upload.DateRow,
			PointsRow:       cfg.Upload.PointsRow,
			FirstStudentRow: cfg.Upload.FirstStudentRow,
		},
		DensityRatio: cfg.Upload.DensityRatio,
		Placeholders: cfg.Upload.MissingPlaceholders,
		ScoreCeiling: cfg.Upload.ScoreCeiling,
	}
	if err := opts.Layout.Validate(); err != nil {
		slog.Error("invalid upload layout", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(cfg, web.Deps{
		Importer: gradebook.NewImporter(store, opts, locker, bus),
		Reports:  gradebook.NewReports(store),
		Tags:     gradebook.NewTagService(store),
		Health:   health,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first so no new upload starts.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for active uploads to complete (with timeout)
		if local != nil && local.ActiveCount() > 0 {
			slog.Info("waiting for uploads to complete", "active", local.ActiveCount())
			if err := local.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		// Stop background jobs
		cancelJobs()
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore connects the configured store. health is nil for the memory
// store.
func openStore(ctx context.Context, cfg *config.Config) (gradebook.Store, func(context.Context) error, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil, func() {}, nil
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, err
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := postgres.New(pool)
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		slog.Info("schema up to date")
	}
	return store, store.Ping, pool.Close, nil
}
