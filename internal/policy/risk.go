package policy

import (
	"math"
	"time"

	"github.com/trackshield/platform/internal/domain"
)

// Score weights and detection constants.
const (
	weightCountryMismatch     = 0.2
	weightFingerprintMismatch = 0.3
	weightUnusualHour         = 0.1
	weightVPN                 = 0.1
	weightImpossibleTravel    = 0.3

	// hourAnomalyThreshold is the minimum deviation, in hours, from the
	// baseline average login hour to count as anomalous.
	hourAnomalyThreshold = 6.0

	// impossibleSpeedKmh is the travel speed above which two consecutive
	// logins are considered physically implausible.
	impossibleSpeedKmh = 1000.0

	// minTravelHours floors the elapsed time between logins so a near-zero
	// gap does not divide away.
	minTravelHours = 0.1
)

// Flag texts surfaced to tenants.
const (
	FlagCountryMismatch     = "Country mismatch."
	FlagFingerprintMismatch = "Device fingerprint mismatch."
	FlagUnusualHour         = "Unusual login hour."
	FlagVPN                 = "VPN or Proxy detected."
	FlagImpossibleTravel    = "Impossible travel detected."
)

// RiskCandidate is the event under evaluation.
type RiskCandidate struct {
	IP          string
	Country     string
	Latitude    float64
	Longitude   float64
	Fingerprint string
	LocalTime   time.Time
	LoginTime   time.Time
	IsVPN       bool
}

// RiskResult is the outcome of one scoring pass.
type RiskResult struct {
	Score float64
	Level domain.RiskLevel
	Flags []string
}

// SuspicionRule is the configurable verdict threshold for one detection path.
// The login path flags at score >= 0.4, the session path at score > 0.5; the
// two disagree upstream and are deliberately kept separate.
type SuspicionRule struct {
	Threshold float64
	Inclusive bool
}

// Suspicious applies the rule to a score.
func (r SuspicionRule) Suspicious(score float64) bool {
	if r.Inclusive {
		return score >= r.Threshold
	}
	return score > r.Threshold
}

// EvaluateRisk scores a candidate event against the baseline of the user's
// prior sessions, most recent first. Each rule is independently additive and
// the sum is clamped to 1.0.
//
// An empty baseline is the user's first-ever session: score 0, not suspicious.
func EvaluateRisk(candidate RiskCandidate, baseline []domain.Session) RiskResult {
	if len(baseline) == 0 {
		return RiskResult{Score: 0, Level: domain.RiskLow}
	}

	var score float64
	var flags []string

	if countryMismatch(candidate.Country, baseline) {
		score += weightCountryMismatch
		flags = append(flags, FlagCountryMismatch)
	}

	if fingerprintMismatch(candidate.Fingerprint, baseline) {
		score += weightFingerprintMismatch
		flags = append(flags, FlagFingerprintMismatch)
	}

	if unusualHour(candidate.LocalTime, baseline) {
		score += weightUnusualHour
		flags = append(flags, FlagUnusualHour)
	}

	if candidate.IsVPN {
		score += weightVPN
		flags = append(flags, FlagVPN)
	}

	if impossibleTravel(candidate, &baseline[0]) {
		score += weightImpossibleTravel
		flags = append(flags, FlagImpossibleTravel)
	}

	if score > 1.0 {
		score = 1.0
	}

	return RiskResult{Score: score, Level: levelFor(score), Flags: flags}
}

func levelFor(score float64) domain.RiskLevel {
	switch {
	case score >= 0.5:
		return domain.RiskHigh
	case score >= 0.3:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func countryMismatch(country string, baseline []domain.Session) bool {
	if country == "" {
		return false
	}
	seen := false
	for i := range baseline {
		c := baseline[i].Geo.Country
		if c == "" {
			continue
		}
		seen = true
		if c == country {
			return false
		}
	}
	return seen
}

func fingerprintMismatch(fingerprint string, baseline []domain.Session) bool {
	if fingerprint == "" {
		return false
	}
	seen := false
	for i := range baseline {
		f := baseline[i].Device.Fingerprint
		if f == "" {
			continue
		}
		seen = true
		if f == fingerprint {
			return false
		}
	}
	return seen
}

func unusualHour(localTime time.Time, baseline []domain.Session) bool {
	var sum float64
	var n int
	for i := range baseline {
		t := baseline[i].LocalLoginTime
		if t.IsZero() {
			continue
		}
		sum += float64(t.Hour())
		n++
	}
	if n == 0 {
		return false
	}
	avg := sum / float64(n)
	return math.Abs(float64(localTime.Hour())-avg) >= hourAnomalyThreshold
}

// impossibleTravel compares the candidate against the most recent prior
// session. Elapsed time runs from that session's logout, falling back to its
// login when it never ended cleanly.
func impossibleTravel(candidate RiskCandidate, prior *domain.Session) bool {
	since := prior.LoginTime
	if prior.LogoutTime != nil {
		since = *prior.LogoutTime
	}

	hours := candidate.LoginTime.Sub(since).Hours()
	if hours < minTravelHours {
		hours = minTravelHours
	}

	distance := DistanceKm(prior.Geo.Latitude, prior.Geo.Longitude, candidate.Latitude, candidate.Longitude)
	return distance/hours > impossibleSpeedKmh
}
