package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intro_pipeline_backend/internal/ledger"
	"intro_pipeline_backend/internal/scheduler"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/config"
	"intro_pipeline_backend/platform/db"
	"intro_pipeline_backend/platform/lock"
	"intro_pipeline_backend/platform/logger"
	"intro_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "cron", cfg.GetReconcileCron(), "timezone", cfg.StudioTimezone)

	if cfg.GetRedisURL() == "" {
		panic("REDIS_URL is required for the scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	redisClient, err := lock.NewClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()

	studioClock := clock.New(cfg.GetStudioLocation())

	// Worker-side ledger wiring (no HTTP handlers or event subscriptions required).
	ledgerModule := ledger.NewModule(pool, studioClock, lock.New(redisClient, "intro-pipeline:"), cfg.GetReconcileLockTTL(), nil, validator.New(), log)

	worker, err := scheduler.NewWorker(cfg, ledgerModule.Service(), studioClock, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, cfg.GetStudioLocation(), log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	// Catch up on churn that became effective while the scheduler was down.
	if err := enqueueStartupPass(ctx, cfg, log); err != nil {
		log.Warn("failed to enqueue startup reconcile pass", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		periodic.Run(gctx)
		return nil
	})
	_ = g.Wait()

	log.Info("scheduler stopped")
}

func enqueueStartupPass(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	client, err := scheduler.NewClient(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.EnqueueChurnReconcile(ctx, nil); err != nil {
		return err
	}
	log.Info("startup reconcile pass enqueued")
	return nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
