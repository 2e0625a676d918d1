package tasks

import (
	"context"
	"log/slog"

	"dealership-platform/pkg/logger"

	"github.com/hibiken/asynq"
)

type WorkerConfig struct {
	Queue       string
	Concurrency int
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

func NewWorker(opt asynq.RedisConnOpt, cfg WorkerConfig, h *Handlers, log *slog.Logger) *Worker {
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if log == nil {
		log = slog.Default()
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         map[string]int{cfg.Queue: 1},
		RetryDelayFunc: RetryDelay,
		Logger:         logger.AsynqLogger{L: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				log.Error("task archived after retries", "task_type", task.Type(), "retried", retried, "err", err)
			}
		}),
	})
	mux := asynq.NewServeMux()
	h.Register(mux)
	return &Worker{server: server, mux: mux, log: log}
}

// Run processes tasks until ctx is cancelled, then waits for in-flight
// tasks to finish.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.log.Info("worker started")
	<-ctx.Done()
	w.log.Info("worker shutting down")
	w.server.Shutdown()
	return nil
}
