package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/infra"
)

// Producer publishes risk-check messages to the scoring queue. The caller
// never waits on scoring; the message is durably queued and consumed
// elsewhere.
type Producer struct {
	kafka  *infra.KafkaProducer
	topic  string
	logger *slog.Logger
}

// NewProducer creates a risk-check producer on the given topic.
func NewProducer(kafka *infra.KafkaProducer, topic string, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, topic: topic, logger: logger}
}

// PublishRiskCheck serializes and queues one scoring request. The message key
// is the deterministic dedup key, so redeliveries land on the same partition
// and upsert the same verdict.
func (p *Producer) PublishRiskCheck(ctx context.Context, msg domain.RiskCheckMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal risk check: %w", err)
	}

	if err := p.kafka.Publish(ctx, p.topic, []byte(msg.DedupKey()), payload); err != nil {
		return fmt.Errorf("publish risk check: %w", err)
	}

	infra.RiskChecksPublished.WithLabelValues(string(msg.Kind)).Inc()
	p.logger.Debug("risk check published",
		"kind", msg.Kind, "tenant_id", msg.TenantID, "session_id", msg.SessionID)
	return nil
}
