package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"intro_pipeline_backend/internal/ledger"
	ledgerservice "intro_pipeline_backend/internal/ledger/service"
	"intro_pipeline_backend/internal/pipeline/domain"
	"intro_pipeline_backend/internal/scheduler"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/config"
	"intro_pipeline_backend/platform/db"
	"intro_pipeline_backend/platform/lock"
	"intro_pipeline_backend/platform/logger"
	"intro_pipeline_backend/platform/validator"

	"cloud.google.com/go/civil"
)

// Runs one churn reconcile pass. AMC_RECONCILE_DATE pins the studio date
// (YYYY-MM-DD); AMC_RECONCILE_ENQUEUE=true hands the pass to the scheduler worker
// instead of running it here.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting amc churn reconcile")

	ctx := context.Background()
	studioClock := clock.New(cfg.GetStudioLocation())

	date := studioClock.Today()
	pinned := false
	if raw := strings.TrimSpace(os.Getenv("AMC_RECONCILE_DATE")); raw != "" {
		d, ok := domain.ParseClassDate(raw)
		if !ok {
			log.Error("invalid AMC_RECONCILE_DATE", "value", raw)
			os.Exit(2)
		}
		date, pinned = d, true
	}

	if getBoolEnv("AMC_RECONCILE_ENQUEUE") {
		client, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()

		var pin *civil.Date
		if pinned {
			pin = &date
		}
		if err := client.EnqueueChurnReconcile(ctx, pin); err != nil {
			log.Error("failed to enqueue reconcile pass", "error", err)
			os.Exit(1)
		}
		log.Info("reconcile pass enqueued", "date", date.String(), "pinned", pinned)
		return
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	var gate ledgerservice.Gate
	if cfg.GetRedisURL() != "" {
		redisClient, err := lock.NewClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
		if err != nil {
			log.Warn("redis unavailable, reconciling without gate", "error", err)
		} else {
			defer func() { _ = redisClient.Close() }()
			gate = lock.New(redisClient, "intro-pipeline:")
		}
	}

	ledgerModule := ledger.NewModule(pool, studioClock, gate, cfg.GetReconcileLockTTL(), nil, validator.New(), log)
	report := ledgerModule.Service().ReconcileEffectiveChurn(ctx, date)

	for _, adj := range report.Adjustments {
		log.Info("adjustment", "kind", adj.Kind, "status", adj.Status, "value", adj.Value, "note", adj.Note)
	}
	switch {
	case report.Skipped:
		log.Warn("another reconcile pass holds the gate; nothing done")
	case report.Err != nil:
		log.Error("reconcile pass failed", "error", report.Err)
		os.Exit(1)
	case report.Failed > 0:
		log.Warn("reconcile finished with failures", "failed", report.Failed)
		os.Exit(1)
	default:
		log.Info("reconcile finished", "date", date.String(), "applied", report.Applied, "alreadyApplied", report.AlreadyApplied)
	}
}

func getBoolEnv(key string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && parsed
}
