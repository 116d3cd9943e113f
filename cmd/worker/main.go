package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := jobmetrics.NewMetrics(nil)

	accountsService := accounts.NewService(accounts.NewRepository(pool), auditLogger)
	journalsService := journals.NewService(journals.NewRepository(pool), accountsService, auditLogger)

	// The worker runs without the directory cache; the sweep never resolves parties.
	directory := masterdata.NewDirectory(masterdata.NewRepository(pool), masterdata.NewCache(nil, 0))
	arService := ar.NewService(ar.NewRepository(pool), directory, idempotencyStore, auditLogger, logger)

	overdueJob := jobs.NewInvoiceOverdueJob(arService, logger, metrics)
	integrityJob := jobs.NewGLIntegrityJob(journalsService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, cfg.IdempotencyRetention, logger, metrics)

	cron := make([]jobs.CronRegistration, 0, 3)
	for _, entry := range []struct {
		spec     string
		taskType string
	}{
		{cfg.OverdueSweepCron, jobs.TaskInvoiceOverdueSweep},
		{cfg.GLIntegrityCron, jobs.TaskGLIntegrity},
		{cfg.IdempotencyCleanCron, jobs.TaskIdempotencyCleanup},
	} {
		if entry.spec == "" {
			continue
		}
		// A zero schedule makes each run use its own processing time.
		task, err := jobs.NewScheduledTask(entry.taskType, time.Time{})
		if err != nil {
			logger.Error("build task", slog.String("task", entry.taskType), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: entry.spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceOverdueSweep, Handler: overdueJob.Handle},
			{Type: jobs.TaskGLIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
