// Package main содержит точку входа рассылки еженедельных прогнозов.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/numerology-bot/internal/app/forecast"
	"github.com/magabrotheeeer/numerology-bot/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting forecast scheduler", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := forecast.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize forecast app", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("forecast app stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("forecast app stopped gracefully")
}
