package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sharex-union/sharex/internal/app"
	"github.com/sharex-union/sharex/internal/notify"
	"github.com/sharex-union/sharex/internal/platform/cache"
	"github.com/sharex-union/sharex/internal/platform/db"
	"github.com/sharex-union/sharex/internal/refdata"
	"github.com/sharex-union/sharex/internal/settle"
	"github.com/sharex-union/sharex/jobs"
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	refStore := refdata.NewRepository(pool, cfg.SettlementCurrency)
	runRepo := settle.NewSQLRepository(pool)
	resultCache := settle.NewCache(redisClient, cfg.ResultCacheTTL)
	service := settle.NewService(refStore, runRepo, resultCache, logger)

	inputs := settle.NewSQLInputSource(pool)
	runJob := jobs.NewSettlementRunJob(service, inputs, logger, nil)

	builder, err := notify.NewBuilder(cfg.SMTPSender, cfg.SMTPFrom)
	if err != nil {
		logger.Error("init statement builder", slog.Any("error", err))
		os.Exit(1)
	}
	mailer := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	emailJob := jobs.NewStatementEmailJob(service, refStore, builder, mailer, logger, nil)

	anomalyJob := jobs.NewAnomalyScanJob(service, logger, nil)
	anomalyTask, err := jobs.NewAnomalyScanTask("", "")
	if err != nil {
		logger.Error("build anomaly task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSettlementRun, Handler: runJob.Handle},
			{Type: jobs.TaskStatementEmails, Handler: emailJob.Handle},
			{Type: jobs.TaskAnomalyScan, Handler: anomalyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			// Scan the just-closed quarter on the 5th of each month.
			{Spec: "0 2 5 * *", Task: anomalyTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
