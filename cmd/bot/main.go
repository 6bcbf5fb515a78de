package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"delta-hedge-bot/internal/app"
	"delta-hedge-bot/internal/config"
	"delta-hedge-bot/internal/logging"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "dotenv file holding DELTA_API_KEY and DELTA_API_SECRET")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		fmt.Fprintf(os.Stderr, "delta-hedge-bot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	if err := config.LoadEnv(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	bot, err := app.New(cfg, log)
	if err != nil {
		log.Error("init failed", zap.Error(err))
		return err
	}
	log.Info("starting",
		zap.String("config", configPath),
		zap.String("exchange", cfg.REST.BaseURL),
		zap.Float64("delta_threshold", cfg.Hedge.DeltaThresholdValue()),
		zap.Duration("check_interval", cfg.Hedge.CheckInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stopped with error", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}
