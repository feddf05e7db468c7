package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trackshield/platform/internal/guard"
	"github.com/trackshield/platform/internal/handler"
	"github.com/trackshield/platform/internal/infra"
	"github.com/trackshield/platform/internal/pipeline"
	"github.com/trackshield/platform/internal/provider"
	"github.com/trackshield/platform/internal/repository"
	"github.com/trackshield/platform/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Queue producer
	kafkaProducer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer kafkaProducer.Close()
	riskProducer := pipeline.NewProducer(kafkaProducer, cfg.RiskCheckTopic, logger)

	// Repositories
	tenantRepo := repository.NewTenantRepository()
	sessionRepo := repository.NewSessionRepository()
	activityRepo := repository.NewActivityRepository()
	suspiciousRepo := repository.NewSuspiciousRepository()
	userRepo := repository.NewUserRepository()

	// Guards and providers
	limiter := guard.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	breaker := guard.NewCircuitBreaker(5, 30*time.Second)
	geo := provider.NewGeoIPClient(cfg.GeoLookupURL, cfg.GeoLookupTimeout, logger)

	// Services
	tenantSvc := service.NewTenantService(pool, tenantRepo)
	sessionSvc := service.NewSessionService(pool, sessionRepo, activityRepo, userRepo, geo, breaker, riskProducer, logger)
	suspiciousSvc := service.NewSuspiciousService(pool, suspiciousRepo)

	// Handlers
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	suspiciousHandler := handler.NewSuspiciousHandler(suspiciousSvc)
	tenantHandler := handler.NewTenantHandler(tenantSvc)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))

	// Health and metrics (no auth)
	r.Get("/health", handler.HealthHandler(pool))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Operator key administration (no tenant key)
	r.Route("/v1/tenants", func(r chi.Router) {
		r.Use(handler.JSONContentType)
		r.Post("/", tenantHandler.Create)
		r.Post("/{id}/renew", tenantHandler.Renew)
		r.Post("/{id}/revoke", tenantHandler.Revoke)
		r.Post("/{id}/regenerate", tenantHandler.Regenerate)
	})

	// Tenant-key routes
	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)
		r.Use(handler.TenantAuth(tenantSvc, limiter))

		r.Route("/v1/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Ingest)
			r.Post("/{id}/end", sessionHandler.End)
			r.Post("/{id}/activity", sessionHandler.RecordActivity)
		})

		r.Route("/v1/suspicious", func(r chi.Router) {
			r.Get("/", suspiciousHandler.List)
			r.Get("/session/{sessionID}", suspiciousHandler.GetBySession)
			r.Post("/{id}/clear", suspiciousHandler.Clear)
		})
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
