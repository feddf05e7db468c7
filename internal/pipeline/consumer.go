package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/infra"
	"github.com/trackshield/platform/internal/policy"
	"github.com/trackshield/platform/internal/provider"
	"github.com/trackshield/platform/internal/repository"
)

// MessageSource is the queue end the consumer reads from.
type MessageSource interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Rules holds the scoring configuration for both detection paths. The two
// thresholds disagree upstream and are kept separately configurable.
type Rules struct {
	BaselineSize int
	Login        policy.SuspicionRule
	Session      policy.SuspicionRule
}

// Consumer pulls risk-check messages, scores them against the user's
// behavioral baseline, persists the verdict and alerts the tenant. One
// message at a time per instance; instances scale horizontally through the
// consumer group.
type Consumer struct {
	source   MessageSource
	db       repository.DBTX
	sessions repository.SessionRepository
	verdicts repository.SuspiciousRepository
	tenants  repository.TenantRepository
	notifier provider.Notifier
	rules    Rules
	logger   *slog.Logger
}

// NewConsumer creates a risk-pipeline consumer.
func NewConsumer(
	source MessageSource,
	db repository.DBTX,
	sessions repository.SessionRepository,
	verdicts repository.SuspiciousRepository,
	tenants repository.TenantRepository,
	notifier provider.Notifier,
	rules Rules,
	logger *slog.Logger,
) *Consumer {
	return &Consumer{
		source:   source,
		db:       db,
		sessions: sessions,
		verdicts: verdicts,
		tenants:  tenants,
		notifier: notifier,
		rules:    rules,
		logger:   logger,
	}
}

// Run consumes until ctx is cancelled. Per-message failures are logged and
// swallowed to keep the loop alive; a malformed payload is dropped, not
// retried.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("risk consumer started", "baseline_size", c.rules.BaselineSize)

	for {
		msg, err := c.source.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("risk consumer stopped")
				return nil
			}
			c.logger.Error("queue read failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.handle(ctx, msg.Value); err != nil {
			c.logger.Error("risk check failed", "error", err)
			infra.RiskChecksConsumed.WithLabelValues("error").Inc()
		}
	}
}

// handle processes one payload end to end. Verdict persistence and
// notification are not transactional with each other: the verdict stands even
// when the alert mail fails.
func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var msg domain.RiskCheckMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("dropping malformed risk check", "error", err)
		infra.RiskChecksConsumed.WithLabelValues("malformed").Inc()
		return nil
	}
	if err := msg.Validate(); err != nil {
		c.logger.Warn("dropping incomplete risk check",
			"tenant_id", msg.TenantID, "session_id", msg.SessionID, "error", err)
		infra.RiskChecksConsumed.WithLabelValues("malformed").Inc()
		return nil
	}

	session, err := c.sessions.FindByID(ctx, c.db, msg.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		c.logger.Warn("dropping risk check for unknown session",
			"tenant_id", msg.TenantID, "session_id", msg.SessionID)
		infra.RiskChecksConsumed.WithLabelValues("orphaned").Inc()
		return nil
	}

	baseline, err := c.loadBaseline(ctx, &msg)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}

	result := policy.EvaluateRisk(candidateFrom(&msg), baseline)
	rule := c.ruleFor(msg.Kind)
	suspicious := rule.Suspicious(result.Score)
	detectedAt := time.Now()

	verdict := &domain.SuspiciousActivity{
		ID:           uuid.New(),
		DedupKey:     msg.DedupKey(),
		TenantID:     msg.TenantID,
		SessionID:    msg.SessionID,
		UserID:       msg.UserID,
		Score:        result.Score,
		Level:        result.Level,
		Flags:        result.Flags,
		DetectedAt:   detectedAt,
		IsSuspicious: suspicious,
	}
	if err := c.verdicts.Upsert(ctx, c.db, verdict); err != nil {
		return fmt.Errorf("persist verdict: %w", err)
	}

	if err := c.sessions.UpdateSuspiciousVerdict(ctx, c.db, msg.SessionID,
		suspicious, strings.Join(result.Flags, " "), detectedAt); err != nil {
		return fmt.Errorf("update session verdict: %w", err)
	}

	if suspicious {
		infra.VerdictsSuspicious.Inc()
		c.notify(ctx, &msg, verdict)
	}

	infra.RiskChecksConsumed.WithLabelValues("ok").Inc()
	c.logger.Info("risk check scored",
		"kind", msg.Kind, "tenant_id", msg.TenantID, "session_id", msg.SessionID,
		"score", result.Score, "level", result.Level, "suspicious", suspicious)
	return nil
}

// loadBaseline fetches the user's recent prior sessions. Anonymous sessions
// have no baseline; scoring treats them as first contact.
func (c *Consumer) loadBaseline(ctx context.Context, msg *domain.RiskCheckMessage) ([]domain.Session, error) {
	if msg.UserID == "" {
		return nil, nil
	}
	return c.sessions.ListRecentByUser(ctx, c.db, msg.TenantID, msg.UserID, msg.SessionID, c.rules.BaselineSize)
}

func (c *Consumer) ruleFor(kind domain.RiskCheckKind) policy.SuspicionRule {
	if kind == domain.RiskCheckSession {
		return c.rules.Session
	}
	return c.rules.Login
}

func (c *Consumer) notify(ctx context.Context, msg *domain.RiskCheckMessage, verdict *domain.SuspiciousActivity) {
	tenant, err := c.tenants.FindByID(ctx, c.db, msg.TenantID)
	if err != nil || tenant == nil {
		c.logger.Warn("tenant lookup for alert failed",
			"tenant_id", msg.TenantID, "session_id", msg.SessionID, "error", err)
		infra.NotifyFailures.Inc()
		return
	}

	subject := fmt.Sprintf("Suspicious activity detected (%s risk)", verdict.Level)
	body := fmt.Sprintf(
		"Session %s for user %q scored %.2f (%s).\n\nFlags:\n- %s\n\nDetected at %s.",
		verdict.SessionID, verdict.UserID, verdict.Score, verdict.Level,
		strings.Join(verdict.Flags, "\n- "), verdict.DetectedAt.Format(time.RFC3339),
	)

	if !c.notifier.Send(tenant.ContactEmail, subject, body) {
		c.logger.Error("alert notification failed",
			"tenant_id", msg.TenantID, "session_id", msg.SessionID)
		infra.NotifyFailures.Inc()
	}
}

func candidateFrom(msg *domain.RiskCheckMessage) policy.RiskCandidate {
	return policy.RiskCandidate{
		IP:          msg.IP,
		Country:     msg.Geo.Country,
		Latitude:    msg.Geo.Latitude,
		Longitude:   msg.Geo.Longitude,
		Fingerprint: msg.Device.Fingerprint,
		LocalTime:   msg.LocalTime,
		LoginTime:   msg.LoginTime,
		IsVPN:       msg.Geo.IsVPN,
	}
}
