package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealership-platform/internal/analysis"
	"dealership-platform/internal/audit"
	"dealership-platform/internal/auth"
	"dealership-platform/internal/config"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/httpapi"
	"dealership-platform/internal/metrics"
	"dealership-platform/internal/reporting"
	"dealership-platform/internal/session"
	"dealership-platform/internal/tasks"
	"dealership-platform/internal/telephony"
	"dealership-platform/migrations"
	"dealership-platform/pkg/logger"
	"dealership-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.MigrateOnStart {
		if err := utils.Migrate(rootCtx, db, migrations.FS, log); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{URL: cfg.Redis.URL})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	sessions := newSessionStore(cfg.Session, rdb, log)

	analyzer := analysis.DefaultAnalyzer()
	if cfg.Analysis.PriceVocabularyFile != "" {
		vocab, err := analysis.LoadPriceVocabulary(cfg.Analysis.PriceVocabularyFile)
		if err != nil {
			log.Error("price vocabulary load failed", "err", err)
			os.Exit(1)
		}
		analyzer = analysis.NewAnalyzer(vocab)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pm := metrics.NewPipelineMetrics(reg)

	enq, err := tasks.NewAsynqEnqueuer(cfg.Redis.URL)
	if err != nil {
		log.Error("task client init failed", "err", err)
		os.Exit(1)
	}
	defer enq.Close()

	redisOpt, err := tasks.RedisOpt(cfg.Redis.URL)
	if err != nil {
		log.Error("task redis options invalid", "err", err)
		os.Exit(1)
	}
	inspector := tasks.NewInspector(redisOpt, cfg.Tasks.Queue)
	defer inspector.Close()

	dispatch := tasks.NewDispatcher(enq, tasks.DispatcherOptions{
		Queue:     cfg.Tasks.Queue,
		Retention: cfg.Tasks.ResultRetention,
		Metrics:   pm,
	})

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	store := crm.NewPostgresRepo(db)
	crmSvc := crm.NewService(store, cfg.Voice.DefaultRegion, auditSvc, log)

	reports := reporting.NewService(reporting.NewPostgresRepo(db), store, analyzer).
		WithCheck("database", func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) }).
		WithCheck("session_store", sessions.Ping).
		WithCheck("task_queue", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	voice := telephony.NewRouter(crmSvc, sessions, dispatch, telephony.TemplateResponder{},
		telephony.RouterConfig{PostCallThankYou: cfg.Voice.PostCallThankYou}, log)

	limiter := telephony.NewIPRateLimiter(cfg.Voice.RateLimitRPS, cfg.Voice.RateLimitBurst)
	go limiter.Run(rootCtx, time.Minute)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		authMW: auth.RequireAccessToken(authManager),
		api: httpapi.Handlers{
			Auth:      authManager,
			CRM:       crmSvc,
			Audit:     auditSvc,
			Dispatch:  dispatch,
			Jobs:      inspector,
			Reporting: reports,
		},
		webhook: telephony.WebhookHandler{
			Router:  voice,
			Secret:  cfg.Voice.WebhookSecret,
			Metrics: pm,
		},
		limiter:  limiter,
		sessions: sessions,
		registry: reg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func newSessionStore(cfg config.SessionConfig, rdb redis.UniversalClient, log *slog.Logger) session.Store {
	opts := session.Options{TTL: cfg.TTL, MaxTurns: cfg.MaxTurns}
	if cfg.Backend == "memory" {
		log.Warn("using in-memory session store; sessions are lost on restart and not shared between replicas")
		return session.NewMemoryStore(opts)
	}
	return session.NewRedisStore(rdb, opts)
}
