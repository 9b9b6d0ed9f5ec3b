package scheduler

import (
	"context"
	"fmt"
	"time"

	"intro_pipeline_backend/platform/config"
	"intro_pipeline_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const defaultReconcileCron = "@every 15m"

// Periodic registers the recurring reconcile task with asynq's scheduler.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, loc *time.Location, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	cron := cfg.GetReconcileCron()
	if cron == "" {
		cron = defaultReconcileCron
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: loc})

	task, err := NewChurnReconcileTask(ChurnReconcilePayload{})
	if err != nil {
		return nil, err
	}
	// Unique keeps a slow worker from queueing a backlog of identical passes.
	entryID, err := s.Register(cron, task, asynq.Queue(queueName(cfg)), asynq.Unique(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", TaskChurnReconcile, err)
	}
	log.Info("periodic task registered", "task", TaskChurnReconcile, "cron", cron, "entryId", entryID)

	return &Periodic{scheduler: s, log: log}, nil
}

// Run blocks until ctx is done.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	if err := p.scheduler.Start(); err != nil {
		p.log.Error("periodic scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
