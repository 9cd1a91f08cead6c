package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/thinq-erp/consol/internal/app"
	"github.com/thinq-erp/consol/internal/consol"
	"github.com/thinq-erp/consol/internal/elimination"
	"github.com/thinq-erp/consol/internal/hierarchy"
	jobmetrics "github.com/thinq-erp/consol/internal/jobs"
	"github.com/thinq-erp/consol/internal/ledger"
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

	auditLogger := shared.NewAuditLogger(pool)

	hierarchyRepo := hierarchy.NewRepository(pool)
	hierarchyService := hierarchy.NewService(hierarchyRepo, auditLogger, logger)

	ledgerRepo := ledger.NewRepository(pool)
	aggregator := ledger.NewAggregator(ledgerRepo)
	statementRepo := statement.NewRepository(pool)

	eliminationRepo := elimination.NewRepository(pool)
	generator := elimination.NewGenerator(eliminationRepo, hierarchyService, ledgerRepo, auditLogger, logger,
		elimination.GeneratorConfig{ActorID: cfg.EliminationActorID})

	consolService := consol.NewService(hierarchyService, aggregator, ledgerRepo, statementRepo, generator, logger)

	metrics := jobmetrics.NewMetrics(nil)
	generateJob := jobs.NewEliminationGenerateJob(consolService, eliminationRepo, logger, metrics)

	// Monthly draft run on the second day at 01:30 UTC, covering the month
	// that just closed.
	generateTask, err := jobs.NewEliminationGenerateTask("all", "", "")
	if err != nil {
		logger.Error("build generate task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskEliminationGenerate, Handler: generateJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 2 * *", Task: generateTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
