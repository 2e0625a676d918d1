package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dealership-platform/pkg/logger"

	"github.com/hibiken/asynq"
)

const DefaultNurtureCron = "0 9 * * *"

type SchedulerConfig struct {
	Queue       string
	NurtureCron string
	Timezone    string
}

// Scheduler enqueues the periodic nurture sweep.
type Scheduler struct {
	scheduler *asynq.Scheduler
	log       *slog.Logger
}

func NewScheduler(opt asynq.RedisConnOpt, cfg SchedulerConfig, log *slog.Logger) (*Scheduler, error) {
	if cfg.NurtureCron == "" {
		cfg.NurtureCron = DefaultNurtureCron
	}
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if log == nil {
		log = slog.Default()
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone: %w", err)
		}
		loc = l
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: loc,
		Logger:   logger.AsynqLogger{L: log},
	})
	task, err := NewDailyNurtureTask()
	if err != nil {
		return nil, err
	}
	entryID, err := s.Register(cfg.NurtureCron, task,
		asynq.Queue(cfg.Queue),
		asynq.MaxRetry(PolicyFor(TypeDailyNurture).MaxRetry),
	)
	if err != nil {
		return nil, fmt.Errorf("register nurture cron %q: %w", cfg.NurtureCron, err)
	}
	log.Info("nurture sweep scheduled", "cron", cfg.NurtureCron, "timezone", loc.String(), "entry_id", entryID)
	return &Scheduler{scheduler: s, log: log}, nil
}

func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.scheduler.Shutdown()
	return nil
}
