package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RiskCheckKind selects the scoring variant applied to a message.
type RiskCheckKind string

const (
	// RiskCheckLogin is published at session ingestion when a user id is present.
	RiskCheckLogin RiskCheckKind = "login"
	// RiskCheckSession is published when a session ends, explicitly or by the reaper.
	RiskCheckSession RiskCheckKind = "session"
)

// RiskCheckMessage is the queue payload for one asynchronous scoring request.
type RiskCheckMessage struct {
	Kind      RiskCheckKind `json:"kind"`
	TenantID  uuid.UUID     `json:"tenant_id"`
	SessionID uuid.UUID     `json:"session_id"`
	UserID    string        `json:"user_id"`
	IP        string        `json:"ip"`
	LocalTime time.Time     `json:"local_time"`
	LoginTime time.Time     `json:"login_time"`
	Device    DeviceInfo    `json:"device"`
	Geo       GeoLocation   `json:"geo"`
}

// DedupKey derives the deterministic idempotency key for this message.
// Redelivered messages carry the same key, so the consumer can upsert the
// verdict instead of inserting a duplicate.
func (m *RiskCheckMessage) DedupKey() string {
	raw := fmt.Sprintf("%s|%s|%s|%d", m.Kind, m.TenantID, m.SessionID, m.LoginTime.UnixNano())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Validate rejects messages missing the fields scoring cannot proceed without.
func (m *RiskCheckMessage) Validate() error {
	if m.TenantID == uuid.Nil {
		return fmt.Errorf("risk check missing tenant id")
	}
	if m.SessionID == uuid.Nil {
		return fmt.Errorf("risk check missing session id")
	}
	if m.Kind != RiskCheckLogin && m.Kind != RiskCheckSession {
		return fmt.Errorf("risk check has unknown kind %q", m.Kind)
	}
	if m.LoginTime.IsZero() {
		return fmt.Errorf("risk check missing login time")
	}
	return nil
}
