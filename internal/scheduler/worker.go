package scheduler

import (
	"context"
	"fmt"

	ledgerservice "intro_pipeline_backend/internal/ledger/service"
	"intro_pipeline_backend/platform/clock"
	"intro_pipeline_backend/platform/config"
	"intro_pipeline_backend/platform/logger"

	"cloud.google.com/go/civil"
	"github.com/hibiken/asynq"
)

// ChurnReconciler runs one reconcile pass. *ledgerservice.Service implements it.
type ChurnReconciler interface {
	ReconcileEffectiveChurn(ctx context.Context, today civil.Date) ledgerservice.ReconcileReport
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	reconciler ChurnReconciler
	clock      clock.Clock
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, reconciler ChurnReconciler, clk clock.Clock, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		reconciler: reconciler,
		clock:      clk,
		log:        log,
	}

	mux.HandleFunc(TaskChurnReconcile, w.handleChurnReconcile)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleChurnReconcile fails the task only when the churn events could not be read;
// per-event failures are picked up by the next pass.
func (w *Worker) handleChurnReconcile(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseChurnReconcilePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	today := w.clock.Today()
	if payload.Date != "" {
		d, err := civil.ParseDate(payload.Date)
		if err != nil {
			return fmt.Errorf("%w: invalid date %q", asynq.SkipRetry, payload.Date)
		}
		today = d
	}

	report := w.reconciler.ReconcileEffectiveChurn(ctx, today)
	if report.Err != nil {
		return report.Err
	}
	if report.Skipped {
		w.log.Info("churn reconcile skipped, another pass holds the gate", "today", today.String())
	}
	return nil
}
