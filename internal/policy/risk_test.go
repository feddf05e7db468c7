package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/trackshield/platform/internal/domain"
)

func baselineSession(country, fingerprint string, localHour int, lat, lon float64, logout time.Time) domain.Session {
	lt := logout
	return domain.Session{
		Geo:            domain.GeoLocation{Country: country, Latitude: lat, Longitude: lon},
		Device:         domain.DeviceInfo{Fingerprint: fingerprint},
		LocalLoginTime: time.Date(2026, 3, 1, localHour, 0, 0, 0, time.UTC),
		LoginTime:      logout.Add(-30 * time.Minute),
		LogoutTime:     &lt,
	}
}

func TestEvaluateRisk_EmptyBaseline(t *testing.T) {
	result := EvaluateRisk(RiskCandidate{Country: "FR", IsVPN: true}, nil)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, domain.RiskLow, result.Level)
	assert.Empty(t, result.Flags)
}

func TestEvaluateRisk_CountryMismatch(t *testing.T) {
	logout := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	baseline := []domain.Session{baselineSession("US", "fp-1", 10, 40.7128, -74.0060, logout)}

	candidate := RiskCandidate{
		Country:     "FR",
		Fingerprint: "fp-1",
		LocalTime:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		LoginTime:   logout.Add(24 * time.Hour),
		Latitude:    40.7128,
		Longitude:   -74.0060,
	}

	result := EvaluateRisk(candidate, baseline)

	assert.Contains(t, result.Flags, FlagCountryMismatch)
	assert.GreaterOrEqual(t, result.Score, 0.2)
}

func TestEvaluateRisk_MatchingBaselineIsClean(t *testing.T) {
	logout := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	baseline := []domain.Session{baselineSession("US", "fp-1", 10, 40.7128, -74.0060, logout)}

	candidate := RiskCandidate{
		Country:     "US",
		Fingerprint: "fp-1",
		LocalTime:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		LoginTime:   logout.Add(24 * time.Hour),
		Latitude:    40.7128,
		Longitude:   -74.0060,
	}

	result := EvaluateRisk(candidate, baseline)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, domain.RiskLow, result.Level)
	assert.Empty(t, result.Flags)
}

func TestEvaluateRisk_ImpossibleTravel(t *testing.T) {
	// New York logout at T, London login at T+10min.
	logout := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	baseline := []domain.Session{baselineSession("US", "fp-1", 12, 40.7128, -74.0060, logout)}

	candidate := RiskCandidate{
		Country:     "US",
		Fingerprint: "fp-1",
		LocalTime:   time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC),
		LoginTime:   logout.Add(10 * time.Minute),
		Latitude:    51.5074,
		Longitude:   -0.1278,
	}

	result := EvaluateRisk(candidate, baseline)

	assert.Contains(t, result.Flags, FlagImpossibleTravel)
	assert.GreaterOrEqual(t, result.Score, 0.3)
	assert.Equal(t, domain.RiskMedium, result.Level)
}

func TestEvaluateRisk_UnusualHourAndVPN(t *testing.T) {
	logout := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	baseline := []domain.Session{
		baselineSession("US", "fp-1", 9, 40.7128, -74.0060, logout),
		baselineSession("US", "fp-1", 11, 40.7128, -74.0060, logout.Add(-24*time.Hour)),
	}

	candidate := RiskCandidate{
		Country:     "US",
		Fingerprint: "fp-1",
		LocalTime:   time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
		LoginTime:   logout.Add(24 * time.Hour),
		Latitude:    40.7128,
		Longitude:   -74.0060,
		IsVPN:       true,
	}

	result := EvaluateRisk(candidate, baseline)

	assert.Contains(t, result.Flags, FlagUnusualHour)
	assert.Contains(t, result.Flags, FlagVPN)
	assert.InDelta(t, 0.2, result.Score, 1e-9)
}

func TestEvaluateRisk_AllFlagsClampedToOne(t *testing.T) {
	logout := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	baseline := []domain.Session{baselineSession("US", "fp-1", 12, 40.7128, -74.0060, logout)}

	candidate := RiskCandidate{
		Country:     "FR",
		Fingerprint: "fp-2",
		LocalTime:   time.Date(2026, 3, 1, 2, 10, 0, 0, time.UTC),
		LoginTime:   logout.Add(10 * time.Minute),
		Latitude:    51.5074,
		Longitude:   -0.1278,
		IsVPN:       true,
	}

	result := EvaluateRisk(candidate, baseline)

	assert.Equal(t, 1.0, result.Score)
	assert.Equal(t, domain.RiskHigh, result.Level)
	assert.Len(t, result.Flags, 5)
}

func TestSuspicionRule_Variants(t *testing.T) {
	login := SuspicionRule{Threshold: 0.4, Inclusive: true}
	session := SuspicionRule{Threshold: 0.5, Inclusive: false}

	assert.True(t, login.Suspicious(0.4))
	assert.False(t, login.Suspicious(0.39))

	assert.False(t, session.Suspicious(0.5))
	assert.True(t, session.Suspicious(0.51))
}
