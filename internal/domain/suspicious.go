package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RiskLevel classifies a scored session or login.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskCleared RiskLevel = "cleared"
)

// SuspiciousActivity is the persisted verdict of one scoring pass.
// Clearing flips IsSuspicious and the level; the record itself is never
// deleted so the audit trail survives.
type SuspiciousActivity struct {
	ID           uuid.UUID `json:"id"`
	DedupKey     string    `json:"-"`
	TenantID     uuid.UUID `json:"tenant_id"`
	SessionID    uuid.UUID `json:"session_id"`
	UserID       string    `json:"user_id,omitempty"`
	Score        float64   `json:"score"`
	Level        RiskLevel `json:"level"`
	Flags        []string  `json:"flags,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
	IsSuspicious bool      `json:"is_suspicious"`
	CreatedAt    time.Time `json:"created_at"`
}

// VerdictFilter narrows tenant-scoped verdict listings.
type VerdictFilter struct {
	From    *time.Time
	To      *time.Time
	Device  string
	Country string
}

// ParseRangeShortcut expands the "24h"/"7d"/"30d" shortcuts into a from-time
// relative to now. Unknown values are a validation error.
func ParseRangeShortcut(shortcut string, now time.Time) (time.Time, error) {
	switch shortcut {
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.AddDate(0, 0, -7), nil
	case "30d":
		return now.AddDate(0, 0, -30), nil
	default:
		return time.Time{}, fmt.Errorf("unknown range shortcut %q", shortcut)
	}
}
