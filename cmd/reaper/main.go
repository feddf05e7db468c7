package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/trackshield/platform/internal/infra"
	"github.com/trackshield/platform/internal/pipeline"
	"github.com/trackshield/platform/internal/reaper"
	"github.com/trackshield/platform/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("reaper failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("reaper connected to postgres")

	kafkaProducer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer kafkaProducer.Close()
	riskProducer := pipeline.NewProducer(kafkaProducer, cfg.RiskCheckTopic, logger)

	r := reaper.New(
		pool,
		repository.NewSessionRepository(),
		repository.NewActivityRepository(),
		riskProducer,
		reaper.Config{
			Interval:      cfg.ReaperInterval,
			IdleThreshold: cfg.IdleThreshold,
			LogoutGrace:   cfg.LogoutGrace,
			BatchSize:     cfg.ReaperBatch,
		},
		logger,
	)

	return r.Run(ctx)
}
