package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeviceInfo is the device metadata snapshot captured at ingestion.
type DeviceInfo struct {
	Fingerprint string `json:"fingerprint"`
	Browser     string `json:"browser,omitempty"`
	Type        string `json:"type,omitempty"`
	OS          string `json:"os,omitempty"`
	Language    string `json:"language,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

// GeoLocation is the geo snapshot resolved from the client IP.
type GeoLocation struct {
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
	Postal    string  `json:"postal,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	ISP       string  `json:"isp,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
	IsVPN     bool    `json:"is_vpn,omitempty"`
}

// Session is one visitor's continuous interaction window with a tenant site.
//
// Lifecycle: created anonymous or identified, optionally rebound in place to a
// user id when identification arrives, then ended by an explicit end call or
// the idle reaper. Ended is terminal; a late async verdict may still update the
// suspicious fields but never resurrects Active.
type Session struct {
	ID             uuid.UUID   `json:"id"`
	Seq            int64       `json:"-"`
	TenantID       uuid.UUID   `json:"tenant_id"`
	UserID         *string     `json:"user_id,omitempty"`
	IP             string      `json:"ip"`
	Device         DeviceInfo  `json:"device"`
	Geo            GeoLocation `json:"geo"`
	LocalLoginTime time.Time   `json:"local_login_time"`
	LoginTime      time.Time   `json:"login_time"`
	LogoutTime     *time.Time  `json:"logout_time,omitempty"`
	Active         bool        `json:"active"`
	Analyzed       bool        `json:"analyzed"`
	Suspicious     bool        `json:"suspicious"`
	SuspiciousFlag *string     `json:"suspicious_flag,omitempty"`
	SuspiciousAt   *time.Time  `json:"suspicious_at,omitempty"`
	ActionCount    int         `json:"action_count"`
}

// Anonymous reports whether the session has not yet been bound to a user.
func (s *Session) Anonymous() bool {
	return s.UserID == nil || *s.UserID == ""
}

// Ended reports whether the session has reached its terminal state.
func (s *Session) Ended() bool {
	return !s.Active && s.LogoutTime != nil
}
