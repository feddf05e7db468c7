package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the API-key record for one customer organization.
// The raw key is never stored; KeyHash is a SHA-256 hex digest.
type Tenant struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	ContactEmail string     `json:"contact_email"`
	KeyHash      string     `json:"-"`
	Plan         string     `json:"plan"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RequestLimit int64      `json:"request_limit"`
	Revoked      bool       `json:"revoked"`
	Active       bool       `json:"active"`
	ResetAt      *time.Time `json:"reset_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RenewInput holds the fields reset together by a plan renewal.
type RenewInput struct {
	Plan         string    `json:"plan"`
	RequestLimit int64     `json:"request_limit"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AdmitDenialReason classifies why an API key was refused.
type AdmitDenialReason string

const (
	DenyUnknownKey AdmitDenialReason = "unknown_key"
	DenyRevoked    AdmitDenialReason = "revoked"
	DenyExpired    AdmitDenialReason = "expired"
	DenyExhausted  AdmitDenialReason = "quota_exhausted"
	DenyInactive   AdmitDenialReason = "inactive"
)
