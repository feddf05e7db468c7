package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"trackshield"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"trackshield"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"trackshield"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Kafka
	KafkaBrokers   string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled   bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	RiskCheckTopic string `env:"RISK_CHECK_TOPIC" envDefault:"trackshield.risk.check"`
	RiskCheckGroup string `env:"RISK_CHECK_GROUP" envDefault:"risk-consumer"`

	// Risk scoring
	BaselineSize          int     `env:"RISK_BASELINE_SIZE" envDefault:"10"`
	LoginRiskThreshold    float64 `env:"RISK_LOGIN_THRESHOLD" envDefault:"0.4"`
	SessionRiskThreshold  float64 `env:"RISK_SESSION_THRESHOLD" envDefault:"0.5"`

	// Idle reaper
	ReaperInterval time.Duration `env:"REAPER_INTERVAL" envDefault:"15m"`
	IdleThreshold  time.Duration `env:"IDLE_THRESHOLD" envDefault:"5m"`
	LogoutGrace    time.Duration `env:"LOGOUT_GRACE" envDefault:"30s"`
	ReaperBatch    int           `env:"REAPER_BATCH" envDefault:"100"`

	// Per-tenant request rate limit (sliding window, in addition to quota)
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"300"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// Geo lookup
	GeoLookupURL     string        `env:"GEO_LOOKUP_URL" envDefault:"http://ip-api.com/json"`
	GeoLookupTimeout time.Duration `env:"GEO_LOOKUP_TIMEOUT" envDefault:"3s"`

	// Alert mail
	SMTPHost string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"alerts@trackshield.io"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for configuration values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.BaselineSize <= 0 {
		return fmt.Errorf("RISK_BASELINE_SIZE must be positive, got %d", c.BaselineSize)
	}
	if c.LoginRiskThreshold < 0 || c.LoginRiskThreshold > 1 {
		return fmt.Errorf("RISK_LOGIN_THRESHOLD must be in [0,1], got %g", c.LoginRiskThreshold)
	}
	if c.SessionRiskThreshold < 0 || c.SessionRiskThreshold > 1 {
		return fmt.Errorf("RISK_SESSION_THRESHOLD must be in [0,1], got %g", c.SessionRiskThreshold)
	}
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("IDLE_THRESHOLD must be positive, got %s", c.IdleThreshold)
	}
	if c.ReaperBatch <= 0 {
		return fmt.Errorf("REAPER_BATCH must be positive, got %d", c.ReaperBatch)
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
