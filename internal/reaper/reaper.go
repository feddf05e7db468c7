package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/infra"
	"github.com/trackshield/platform/internal/repository"
	"github.com/trackshield/platform/internal/service"
)

// Config sizes one reaper instance.
type Config struct {
	Interval      time.Duration
	IdleThreshold time.Duration
	LogoutGrace   time.Duration
	BatchSize     int
}

// Reaper periodically closes sessions whose last activity is older than the
// idle threshold. One pass at a time: the sleep-then-scan structure means a
// slow pass delays but never overlaps the next.
type Reaper struct {
	db         repository.DBTX
	sessions   repository.SessionRepository
	activities repository.ActivityRepository
	publisher  service.RiskPublisher
	cfg        Config
	logger     *slog.Logger
}

// New creates an idle-session reaper.
func New(
	db repository.DBTX,
	sessions repository.SessionRepository,
	activities repository.ActivityRepository,
	publisher service.RiskPublisher,
	cfg Config,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		db:         db,
		sessions:   sessions,
		activities: activities,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. The sleep is
// cancellable; an in-flight item is allowed to finish.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info("idle reaper started",
		"interval", r.cfg.Interval, "idle_threshold", r.cfg.IdleThreshold, "batch_size", r.cfg.BatchSize)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("idle reaper stopped")
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep scans all active sessions once, in seq-cursor batches so concurrent
// inserts cannot starve or shift the scan. A failure on one session logs and
// moves on; the pass never aborts wholesale.
func (r *Reaper) Sweep(ctx context.Context) {
	now := time.Now()
	var cursor int64
	var closed, scanned int

	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := r.sessions.ListActiveAfter(ctx, r.db, cursor, r.cfg.BatchSize)
		if err != nil {
			r.logger.Error("reaper scan failed", "cursor", cursor, "error", err)
			return
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			if ctx.Err() != nil {
				return
			}
			s := &batch[i]
			cursor = s.Seq
			scanned++

			didClose, err := r.reapOne(ctx, s, now)
			if err != nil {
				r.logger.Error("reap failed",
					"tenant_id", s.TenantID, "session_id", s.ID, "error", err)
				continue
			}
			if didClose {
				closed++
			}
		}

		if len(batch) < r.cfg.BatchSize {
			break
		}
	}

	if scanned > 0 {
		r.logger.Info("reaper pass complete", "scanned", scanned, "closed", closed)
	}
}

// reapOne closes a single session when it has been idle past the threshold.
// Sessions without any activity yet are skipped; their idle time cannot be
// assessed.
func (r *Reaper) reapOne(ctx context.Context, s *domain.Session, now time.Time) (bool, error) {
	last, err := r.activities.LatestBySession(ctx, r.db, s.ID)
	if err != nil {
		return false, fmt.Errorf("latest activity: %w", err)
	}
	if last == nil {
		return false, nil
	}

	if now.Sub(last.OccurredAt) < r.cfg.IdleThreshold {
		return false, nil
	}

	count, err := r.activities.CountBySession(ctx, r.db, s.ID)
	if err != nil {
		return false, fmt.Errorf("count activity: %w", err)
	}

	logout := last.OccurredAt.Add(r.cfg.LogoutGrace)
	rows, err := r.sessions.End(ctx, r.db, s.ID, logout, count)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	if rows == 0 {
		// Lost the race with an explicit end call; nothing to do.
		return false, nil
	}

	infra.SessionsEnded.WithLabelValues("reaper").Inc()
	r.logger.Info("idle session closed",
		"tenant_id", s.TenantID, "session_id", s.ID,
		"last_activity", last.OccurredAt, "actions", count)

	s.Active = false
	s.LogoutTime = &logout
	s.ActionCount = count
	r.publishCheck(ctx, s)

	return true, nil
}

func (r *Reaper) publishCheck(ctx context.Context, s *domain.Session) {
	userID := ""
	if s.UserID != nil {
		userID = *s.UserID
	}
	msg := domain.RiskCheckMessage{
		Kind:      domain.RiskCheckSession,
		TenantID:  s.TenantID,
		SessionID: s.ID,
		UserID:    userID,
		IP:        s.IP,
		LocalTime: s.LocalLoginTime,
		LoginTime: s.LoginTime,
		Device:    s.Device,
		Geo:       s.Geo,
	}
	if err := r.publisher.PublishRiskCheck(ctx, msg); err != nil {
		r.logger.Error("risk check publish failed",
			"tenant_id", s.TenantID, "session_id", s.ID, "error", err)
	}
}
