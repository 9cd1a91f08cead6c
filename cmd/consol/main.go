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

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thinq-erp/consol/internal/app"
	"github.com/thinq-erp/consol/internal/consol"
	consolhttp "github.com/thinq-erp/consol/internal/consol/http"
	"github.com/thinq-erp/consol/internal/elimination"
	"github.com/thinq-erp/consol/internal/hierarchy"
	"github.com/thinq-erp/consol/internal/ledger"
	"github.com/thinq-erp/consol/internal/platform/cache"
	"github.com/thinq-erp/consol/internal/platform/db"
	"github.com/thinq-erp/consol/internal/shared"
	"github.com/thinq-erp/consol/internal/statement"
	"github.com/thinq-erp/consol/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	hierarchyRepo := hierarchy.NewRepository(pool)
	hierarchyService := hierarchy.NewService(hierarchyRepo, auditLogger, logger)

	ledgerRepo := ledger.NewRepository(pool)
	aggregator := ledger.NewAggregator(ledgerRepo)
	statementRepo := statement.NewRepository(pool)

	eliminationRepo := elimination.NewRepository(pool)
	generator := elimination.NewGenerator(eliminationRepo, hierarchyService, ledgerRepo, auditLogger, logger,
		elimination.GeneratorConfig{ActorID: cfg.EliminationActorID})
	eliminationService := elimination.NewService(eliminationRepo, auditLogger, logger)

	consolService := consol.NewService(hierarchyService, aggregator, ledgerRepo, statementRepo, generator, logger)

	router := chi.NewRouter()
	for _, mw := range app.MiddlewareStack(app.MiddlewareConfig{Logger: logger, Config: cfg}) {
		router.Use(mw)
	}

	consolhttp.NewReportHandler(logger, consolService, redisClient, cfg.ReportCacheTTL).MountRoutes(router)
	consolhttp.NewLinkHandler(logger, hierarchyService).MountRoutes(router)
	consolhttp.NewEliminationHandler(logger, consolService, eliminationService, redisClient).MountRoutes(router)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	router.Route("/jobs", func(r chi.Router) {
		jobs.NewHandler(inspector, logger).MountRoutes(r)
	})

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("consolidation api listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
