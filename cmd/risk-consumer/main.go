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
	"github.com/trackshield/platform/internal/policy"
	"github.com/trackshield/platform/internal/provider"
	"github.com/trackshield/platform/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("risk consumer failed", "error", err)
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
	logger.Info("risk-consumer connected to postgres")

	source := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.RiskCheckTopic, cfg.RiskCheckGroup, cfg.KafkaEnabled, logger)
	if !source.Enabled() {
		return fmt.Errorf("kafka is disabled; the risk consumer has nothing to read")
	}
	defer source.Close()

	notifier := provider.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, logger)

	rules := pipeline.Rules{
		BaselineSize: cfg.BaselineSize,
		Login:        policy.SuspicionRule{Threshold: cfg.LoginRiskThreshold, Inclusive: true},
		Session:      policy.SuspicionRule{Threshold: cfg.SessionRiskThreshold, Inclusive: false},
	}

	consumer := pipeline.NewConsumer(
		source,
		pool,
		repository.NewSessionRepository(),
		repository.NewSuspiciousRepository(),
		repository.NewTenantRepository(),
		notifier,
		rules,
		logger,
	)

	return consumer.Run(ctx)
}
