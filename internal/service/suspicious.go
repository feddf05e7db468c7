package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/repository"
)

const defaultVerdictLimit = 200

// SuspiciousService is the tenant-facing verdict query surface.
type SuspiciousService struct {
	db       repository.DBTX
	verdicts repository.SuspiciousRepository
}

// NewSuspiciousService creates a new SuspiciousService.
func NewSuspiciousService(db repository.DBTX, verdicts repository.SuspiciousRepository) *SuspiciousService {
	return &SuspiciousService{db: db, verdicts: verdicts}
}

// ListQuery carries the raw filter parameters from the query string.
type ListQuery struct {
	Range   string
	From    *time.Time
	To      *time.Time
	Device  string
	Country string
}

// List returns the tenant's verdicts, newest first. The "range" shortcut wins
// over an explicit from when both are supplied.
func (s *SuspiciousService) List(ctx context.Context, tenantID uuid.UUID, query ListQuery) ([]domain.SuspiciousActivity, error) {
	filter := domain.VerdictFilter{
		From:    query.From,
		To:      query.To,
		Device:  query.Device,
		Country: query.Country,
	}

	if query.Range != "" {
		from, err := domain.ParseRangeShortcut(query.Range, time.Now())
		if err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		filter.From = &from
	}

	verdicts, err := s.verdicts.ListByTenant(ctx, s.db, tenantID, filter, defaultVerdictLimit)
	if err != nil {
		return nil, domain.ErrInternal("list verdicts", err)
	}
	return verdicts, nil
}

// FindBySession returns the verdicts recorded for one session.
func (s *SuspiciousService) FindBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]domain.SuspiciousActivity, error) {
	verdicts, err := s.verdicts.FindBySession(ctx, s.db, tenantID, sessionID)
	if err != nil {
		return nil, domain.ErrInternal("find verdicts", err)
	}
	if len(verdicts) == 0 {
		return nil, domain.ErrNotFound("verdict for session", sessionID.String())
	}
	return verdicts, nil
}

// Clear marks a verdict safe. Idempotent: clearing an already-clear verdict is
// a no-op, and the record survives for the audit trail.
func (s *SuspiciousService) Clear(ctx context.Context, tenantID, verdictID uuid.UUID) error {
	verdict, err := s.verdicts.FindByID(ctx, s.db, verdictID)
	if err != nil {
		return domain.ErrInternal("find verdict", err)
	}
	if verdict == nil || verdict.TenantID != tenantID {
		return domain.ErrNotFound("verdict", verdictID.String())
	}

	if err := s.verdicts.Clear(ctx, s.db, verdictID); err != nil {
		return domain.ErrInternal("clear verdict", err)
	}
	return nil
}
