package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealership-platform/internal/audit"
	"dealership-platform/internal/config"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/documents"
	"dealership-platform/internal/metrics"
	"dealership-platform/internal/notify"
	"dealership-platform/internal/tasks"
	"dealership-platform/pkg/logger"
	"dealership-platform/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env).With("component", "worker")
	slog.SetDefault(log)

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("worker exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	defer db.Close()

	storage, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	redisOpt, err := tasks.RedisOpt(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("task redis options: %w", err)
	}
	enq, err := tasks.NewAsynqEnqueuer(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("task client init: %w", err)
	}
	defer enq.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pm := metrics.NewPipelineMetrics(reg)

	store := crm.NewPostgresRepo(db)
	crmSvc := crm.NewService(store, cfg.Voice.DefaultRegion, audit.NewService(audit.NewPostgresRepo(db)), log)
	invoices := documents.NewService(store, documents.MarotoRenderer{}, storage, documents.Options{
		CompanyName: cfg.Documents.CompanyName,
		GSTRatePct:  cfg.Documents.GSTRatePct,
	}, log)

	handlers := tasks.NewHandlers(tasks.Deps{
		CRM:       crmSvc,
		Templates: notify.NewTemplates(cfg.Documents.CompanyName),
		Mailer:    newMailer(cfg.SMTP, log),
		Invoices:  invoices,
		Dispatch: tasks.NewDispatcher(enq, tasks.DispatcherOptions{
			Queue:     cfg.Tasks.Queue,
			Retention: cfg.Tasks.ResultRetention,
			Metrics:   pm,
		}),
		Metrics: pm,
		Log:     log,
	})

	worker := tasks.NewWorker(redisOpt, tasks.WorkerConfig{
		Queue:       cfg.Tasks.Queue,
		Concurrency: cfg.Tasks.Concurrency,
	}, handlers, log)
	scheduler, err := tasks.NewScheduler(redisOpt, tasks.SchedulerConfig{
		Queue:       cfg.Tasks.Queue,
		NurtureCron: cfg.Tasks.NurtureCron,
		Timezone:    cfg.Tasks.Timezone,
	}, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	if cfg.Tasks.MetricsPort > 0 {
		g.Go(func() error { return serveMetrics(gctx, cfg.Tasks.MetricsPort, reg, log) })
	}
	return g.Wait()
}

func newMailer(cfg config.SMTPConfig, log *slog.Logger) notify.Mailer {
	if cfg.Host == "" {
		log.Warn("SMTP_HOST not set; emails will only be logged")
		return notify.LogMailer{Log: log}
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:       cfg.Host,
		Port:       cfg.Port,
		Username:   cfg.User,
		Password:   cfg.Password,
		FromEmail:  cfg.From,
		SenderName: cfg.SenderName,
	})
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (documents.Storage, error) {
	if cfg.Backend != "minio" {
		return documents.LocalStorage{Dir: cfg.LocalDir}, nil
	}
	s, err := documents.NewMinIOStorage(documents.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.MinIOBucket,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func serveMetrics(ctx context.Context, port int, reg *prometheus.Registry, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("worker metrics listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
