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

	"intro_pipeline_backend/internal/events"
	apphttp "intro_pipeline_backend/internal/http"
	"intro_pipeline_backend/internal/http/router"
	"intro_pipeline_backend/internal/intros"
	"intro_pipeline_backend/internal/ledger"
	ledgerservice "intro_pipeline_backend/internal/ledger/service"
	"intro_pipeline_backend/internal/scheduler"
	"intro_pipeline_backend/migrations"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/config"
	"intro_pipeline_backend/platform/db"
	"intro_pipeline_backend/platform/lock"
	"intro_pipeline_backend/platform/logger"
	"intro_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "timezone", cfg.StudioTimezone)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	defer pool.Close()
	log.Info("database connection established")

	if cfg.MigrationsDisabled {
		log.Info("database migrations disabled")
	} else {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool, migrations.FS)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	gate, closeGate := initReconcileGate(ctx, cfg, log)
	if closeGate != nil {
		defer closeGate()
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()
	studioClock := clock.New(cfg.GetStudioLocation())

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	ledgerModule := ledger.NewModule(pool, studioClock, gate, cfg.GetReconcileLockTTL(), eventBus, val, log)
	ledgerModule.RegisterHandlers(eventBus)

	introsModule := intros.NewModule(pool, studioClock, eventBus, cfg.GetNeedsOutcomeLookbackDays(), val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			introsModule,
			ledgerModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.GetRedisURL() == "" {
		// Without Redis there is no scheduler process; reconcile in-process instead.
		g.Go(func() error {
			scheduler.NewReconcileTicker(ledgerModule.Service(), studioClock, log, 0).Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}

	eventBus.Wait()
	ledgerModule.Wait()
	log.Info("server stopped")
}

// initReconcileGate connects the Redis lock used to serialize reconcile passes.
// A nil gate is returned when Redis is not configured or unreachable.
func initReconcileGate(ctx context.Context, cfg *config.Config, log *logger.Logger) (ledgerservice.Gate, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; reconcile gate and scheduler disabled")
		return nil, nil
	}

	client, err := lock.NewClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		return nil, nil
	}
	if err := withRetry(ctx, log, "redis connection", 3, time.Second, func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		log.Error("redis unreachable; reconcile gate disabled", "error", err)
		_ = client.Close()
		return nil, nil
	}

	return lock.New(client, "intro-pipeline:"), func() {
		_ = client.Close()
	}
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
