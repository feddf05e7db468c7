package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActivityLogEntry is one in-session event. The log is append-only; entries
// are never mutated or deleted, and ordering within a session is by OccurredAt.
type ActivityLogEntry struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	SessionID      uuid.UUID       `json:"session_id"`
	Action         string          `json:"action"`
	ProductRef     *string         `json:"product_ref,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	ResponseCode   int             `json:"response_code,omitempty"`
	ResponseTimeMs int             `json:"response_time_ms,omitempty"`
}
