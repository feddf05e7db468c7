package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline and reaper counters, registered on the default registry and served
// from /metrics on the API server.
var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackshield_sessions_created_total",
		Help: "Sessions created or rebound at ingestion.",
	})

	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackshield_sessions_ended_total",
		Help: "Sessions closed, by cause.",
	}, []string{"cause"})

	AdmissionDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackshield_admission_denied_total",
		Help: "API key admissions refused, by reason.",
	}, []string{"reason"})

	RiskChecksPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackshield_risk_checks_published_total",
		Help: "Risk-check messages published, by kind.",
	}, []string{"kind"})

	RiskChecksConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackshield_risk_checks_consumed_total",
		Help: "Risk-check messages consumed, by outcome.",
	}, []string{"outcome"})

	VerdictsSuspicious = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackshield_verdicts_suspicious_total",
		Help: "Scoring passes that produced a suspicious verdict.",
	})

	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackshield_notify_failures_total",
		Help: "Alert notifications that failed to send.",
	})
)
