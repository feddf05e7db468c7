package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/guard"
	"github.com/trackshield/platform/internal/infra"
	"github.com/trackshield/platform/internal/provider"
	"github.com/trackshield/platform/internal/repository"
)

// RiskPublisher queues one scoring request. Publishing is fire-and-forget for
// the caller; the message itself is durably queued.
type RiskPublisher interface {
	PublishRiskCheck(ctx context.Context, msg domain.RiskCheckMessage) error
}

// SessionService owns the session lifecycle and the producer side of the risk
// pipeline.
type SessionService struct {
	db         repository.DBTX
	sessions   repository.SessionRepository
	activities repository.ActivityRepository
	users      repository.UserRepository
	geo        provider.GeoLookup
	breaker    *guard.CircuitBreaker
	publisher  RiskPublisher
	logger     *slog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	db repository.DBTX,
	sessions repository.SessionRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	geo provider.GeoLookup,
	breaker *guard.CircuitBreaker,
	publisher RiskPublisher,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		db:         db,
		sessions:   sessions,
		activities: activities,
		users:      users,
		geo:        geo,
		breaker:    breaker,
		publisher:  publisher,
		logger:     logger,
	}
}

// IngestInput holds one session ingestion request.
type IngestInput struct {
	SessionID string             `json:"-"`
	UserID    string             `json:"userId,omitempty"`
	IP        string             `json:"ip"`
	UserAgent string             `json:"userAgent,omitempty"`
	Device    domain.DeviceInfo  `json:"device"`
	LocalTime time.Time          `json:"localTime"`
	Geo       *domain.GeoLocation `json:"geo,omitempty"`
}

// Ingest creates a session, or rebinds an existing open one when the client
// supplies a session id that still resolves. Binding a user id to a
// previously anonymous session mutates the record in place; it never forks a
// duplicate session.
func (s *SessionService) Ingest(ctx context.Context, tenant *domain.Tenant, input IngestInput) (*domain.Session, error) {
	if input.IP == "" {
		return nil, domain.ErrValidation("client ip is required")
	}

	if input.SessionID != "" {
		if existing, err := s.reuseExisting(ctx, tenant, input); existing != nil || err != nil {
			return existing, err
		}
	}

	geo := input.Geo
	if geo == nil {
		geo = s.resolveGeo(ctx, input.IP)
	}
	if geo == nil {
		geo = &domain.GeoLocation{}
	}

	now := time.Now()
	localTime := input.LocalTime
	if localTime.IsZero() {
		localTime = now
	}

	session := &domain.Session{
		ID:             uuid.New(),
		TenantID:       tenant.ID,
		IP:             input.IP,
		Device:         deviceFromInput(input),
		Geo:            *geo,
		LocalLoginTime: localTime,
		LoginTime:      now,
		Active:         true,
	}
	if input.UserID != "" {
		session.UserID = &input.UserID
	}

	if err := s.sessions.Insert(ctx, s.db, session); err != nil {
		return nil, domain.ErrInternal("create session", err)
	}
	infra.SessionsCreated.Inc()

	if input.UserID != "" {
		s.bindUser(ctx, tenant.ID, input.UserID)
		s.publish(ctx, domain.RiskCheckLogin, session)
	}

	return session, nil
}

// reuseExisting returns the still-open session the client named, binding the
// incoming user id in place when the session was anonymous. Returns (nil, nil)
// when the id does not resolve to a reusable session, which falls through to
// a fresh insert.
func (s *SessionService) reuseExisting(ctx context.Context, tenant *domain.Tenant, input IngestInput) (*domain.Session, error) {
	id, err := uuid.Parse(input.SessionID)
	if err != nil {
		return nil, domain.ErrValidation("malformed session id")
	}

	existing, err := s.sessions.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("find session", err)
	}
	if existing == nil || existing.TenantID != tenant.ID || !existing.Active {
		return nil, nil
	}

	if input.UserID != "" && existing.Anonymous() {
		if err := s.sessions.BindUser(ctx, s.db, existing.ID, input.UserID); err != nil {
			return nil, err
		}
		existing.UserID = &input.UserID
		s.bindUser(ctx, tenant.ID, input.UserID)
		s.publish(ctx, domain.RiskCheckLogin, existing)
	}

	return existing, nil
}

// End closes a session explicitly. Already-ended sessions report Conflict
// without touching logout_time again.
func (s *SessionService) End(ctx context.Context, tenant *domain.Tenant, sessionID uuid.UUID) (*domain.Session, error) {
	session, err := s.sessions.FindByID(ctx, s.db, sessionID)
	if err != nil {
		return nil, domain.ErrInternal("find session", err)
	}
	if session == nil || session.TenantID != tenant.ID {
		return nil, domain.ErrNotFound("session", sessionID.String())
	}
	if !session.Active {
		return nil, domain.ErrConflict("session already ended")
	}

	count, err := s.activities.CountBySession(ctx, s.db, sessionID)
	if err != nil {
		return nil, domain.ErrInternal("count activity", err)
	}

	now := time.Now()
	rows, err := s.sessions.End(ctx, s.db, sessionID, now, count)
	if err != nil {
		return nil, domain.ErrInternal("end session", err)
	}
	if rows == 0 {
		// Lost the race with the reaper or a concurrent end call.
		return nil, domain.ErrConflict("session already ended")
	}

	session.Active = false
	session.LogoutTime = &now
	session.ActionCount = count
	infra.SessionsEnded.WithLabelValues("api").Inc()

	s.publish(ctx, domain.RiskCheckSession, session)
	return session, nil
}

// ActivityInput holds one activity-log append.
type ActivityInput struct {
	Action         string          `json:"action"`
	ProductRef     string          `json:"productRef,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	ResponseCode   int             `json:"responseCode,omitempty"`
	ResponseTimeMs int             `json:"responseTimeMs,omitempty"`
}

// RecordActivity appends one entry to the session's log.
func (s *SessionService) RecordActivity(ctx context.Context, tenant *domain.Tenant, sessionID uuid.UUID, input ActivityInput) (*domain.ActivityLogEntry, error) {
	if input.Action == "" {
		return nil, domain.ErrValidation("action is required")
	}

	session, err := s.sessions.FindByID(ctx, s.db, sessionID)
	if err != nil {
		return nil, domain.ErrInternal("find session", err)
	}
	if session == nil || session.TenantID != tenant.ID {
		return nil, domain.ErrNotFound("session", sessionID.String())
	}
	if !session.Active {
		return nil, domain.ErrConflict("session already ended")
	}

	entry := &domain.ActivityLogEntry{
		ID:             uuid.New(),
		TenantID:       tenant.ID,
		SessionID:      sessionID,
		Action:         input.Action,
		OccurredAt:     input.OccurredAt,
		Metadata:       input.Metadata,
		ResponseCode:   input.ResponseCode,
		ResponseTimeMs: input.ResponseTimeMs,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}
	if input.ProductRef != "" {
		entry.ProductRef = &input.ProductRef
	}

	if err := s.activities.Append(ctx, s.db, entry); err != nil {
		return nil, domain.ErrInternal("append activity", err)
	}
	return entry, nil
}

func (s *SessionService) resolveGeo(ctx context.Context, ip string) *domain.GeoLocation {
	if s.geo == nil {
		return nil
	}
	if result := s.breaker.Check(ctx, "geoip"); !result.Allowed {
		s.logger.Warn("geo lookup skipped", "reason", result.Reason)
		return nil
	}
	loc := s.geo.Resolve(ctx, ip)
	if loc == nil {
		s.breaker.RecordFailure("geoip")
		return nil
	}
	s.breaker.RecordSuccess("geoip")
	return loc
}

func (s *SessionService) bindUser(ctx context.Context, tenantID uuid.UUID, userID string) {
	if err := s.users.BindTenant(ctx, s.db, userID, tenantID); err != nil {
		s.logger.Warn("bind user tenant failed", "user_id", userID, "error", err)
	}
}

func (s *SessionService) publish(ctx context.Context, kind domain.RiskCheckKind, session *domain.Session) {
	userID := ""
	if session.UserID != nil {
		userID = *session.UserID
	}
	msg := domain.RiskCheckMessage{
		Kind:      kind,
		TenantID:  session.TenantID,
		SessionID: session.ID,
		UserID:    userID,
		IP:        session.IP,
		LocalTime: session.LocalLoginTime,
		LoginTime: session.LoginTime,
		Device:    session.Device,
		Geo:       session.Geo,
	}
	if err := s.publisher.PublishRiskCheck(ctx, msg); err != nil {
		s.logger.Error("risk check publish failed",
			"tenant_id", session.TenantID, "session_id", session.ID, "kind", kind, "error", err)
	}
}

func deviceFromInput(input IngestInput) domain.DeviceInfo {
	device := input.Device

	if input.UserAgent != "" {
		ua := useragent.Parse(input.UserAgent)
		if device.Browser == "" {
			device.Browser = ua.Name
		}
		if device.OS == "" {
			device.OS = ua.OS
		}
		if device.Type == "" {
			switch {
			case ua.Mobile:
				device.Type = "mobile"
			case ua.Tablet:
				device.Type = "tablet"
			case ua.Bot:
				device.Type = "bot"
			default:
				device.Type = "desktop"
			}
		}
	}

	if device.Fingerprint == "" {
		sum := sha256.Sum256([]byte(input.UserAgent + "|" + device.Language + "|" + device.Resolution))
		device.Fingerprint = hex.EncodeToString(sum[:16])
	}

	return device
}
