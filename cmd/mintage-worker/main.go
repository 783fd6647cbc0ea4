package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mintage/internal/config"
	"mintage/internal/db"
	"mintage/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	sched := scheduler.New(pool, logger, cfg.TickEvery, cfg.LockTimeout)

	if cfg.RunOnce {
		if err := sched.EnsureLock(ctx); err != nil {
			logger.Error("ensure scheduler lock failed", "err", err)
			os.Exit(1)
		}
		sched.Fire(ctx)
		logger.Info("worker run-once completed")
		return
	}

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("worker shutdown")
}
