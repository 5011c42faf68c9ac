package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/atiff-automation/QR-Eat-sub000/internal/app"
	"github.com/atiff-automation/QR-Eat-sub000/internal/audit"
	jobmetrics "github.com/atiff-automation/QR-Eat-sub000/internal/jobs"
	"github.com/atiff-automation/QR-Eat-sub000/internal/platform/db"
	"github.com/atiff-automation/QR-Eat-sub000/internal/session"
	"github.com/atiff-automation/QR-Eat-sub000/jobs"
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

	sessionStore := session.NewStore(session.NewRepository(pool), cfg.SessionTTL, logger)
	auditService := audit.NewService(audit.NewRepository(pool))

	metrics := jobmetrics.NewMetrics(nil)
	sweepJob := jobs.NewSessionCleanupJob(sessionStore, logger, metrics)
	retentionJob := jobs.NewAuditRetentionJob(auditService, logger, metrics)

	sweepTask, err := jobs.NewSessionCleanupTask()
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	retentionTask, err := jobs.NewAuditRetentionTask(cfg.AuditRetentionDays)
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionCleanup, Handler: sweepJob.Handle},
			{Type: jobs.TaskAuditRetention, Handler: retentionJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
