package scheduler

import (
	"context"
	"time"

	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/logger"
)

const defaultReconcileInterval = 15 * time.Minute

// ReconcileTicker runs reconcile passes in-process on a fixed interval. The API uses it
// when no Redis is configured and the asynq worker is therefore not running.
type ReconcileTicker struct {
	reconciler ChurnReconciler
	clock      clock.Clock
	log        *logger.Logger
	interval   time.Duration
}

func NewReconcileTicker(reconciler ChurnReconciler, clk clock.Clock, log *logger.Logger, interval time.Duration) *ReconcileTicker {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &ReconcileTicker{reconciler: reconciler, clock: clk, log: log, interval: interval}
}

func (t *ReconcileTicker) Run(ctx context.Context) {
	if t == nil || t.reconciler == nil {
		return
	}

	t.reconcile(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reconcile(ctx)
		}
	}
}

func (t *ReconcileTicker) reconcile(ctx context.Context) {
	report := t.reconciler.ReconcileEffectiveChurn(ctx, t.clock.Today())
	if report.Err != nil {
		t.log.Warn("scheduled churn reconcile failed", "error", report.Err)
	}
}
