package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/trackshield/platform/internal/domain"
)

type sessionRepo struct{}

// NewSessionRepository returns a pgx-backed SessionRepository.
func NewSessionRepository() SessionRepository {
	return &sessionRepo{}
}

const sessionColumns = `id, seq, tenant_id, user_id, ip,
	device_fingerprint, device_browser, device_type, device_os, device_language, device_resolution,
	geo_country, geo_city, geo_region, geo_postal, geo_lat, geo_lon, geo_isp, geo_timezone, geo_is_vpn,
	local_login_time, login_time, logout_time, active, analyzed,
	suspicious, suspicious_flag, suspicious_at, action_count`

func (r *sessionRepo) Insert(ctx context.Context, db DBTX, s *domain.Session) error {
	_, err := db.Exec(ctx, `
		INSERT INTO sessions (
			id, tenant_id, user_id, ip,
			device_fingerprint, device_browser, device_type, device_os, device_language, device_resolution,
			geo_country, geo_city, geo_region, geo_postal, geo_lat, geo_lon, geo_isp, geo_timezone, geo_is_vpn,
			local_login_time, login_time, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,true)`,
		s.ID, s.TenantID, s.UserID, s.IP,
		s.Device.Fingerprint, s.Device.Browser, s.Device.Type, s.Device.OS, s.Device.Language, s.Device.Resolution,
		s.Geo.Country, s.Geo.City, s.Geo.Region, s.Geo.Postal, s.Geo.Latitude, s.Geo.Longitude, s.Geo.ISP, s.Geo.Timezone, s.Geo.IsVPN,
		s.LocalLoginTime, s.LoginTime,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error) {
	row := db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *sessionRepo) BindUser(ctx context.Context, db DBTX, id uuid.UUID, userID string) error {
	tag, err := db.Exec(ctx, `
		UPDATE sessions SET user_id = $2
		WHERE id = $1 AND (user_id IS NULL OR user_id = '')`,
		id, userID)
	if err != nil {
		return fmt.Errorf("bind session user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict("session already bound to a user")
	}
	return nil
}

// End touches only the lifecycle fields. The active=true predicate makes a
// double end affect zero rows, which the caller reports as Conflict.
func (r *sessionRepo) End(ctx context.Context, db DBTX, id uuid.UUID, logoutTime time.Time, actionCount int) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE sessions
		SET active = false, logout_time = $2, action_count = $3
		WHERE id = $1 AND active`,
		id, logoutTime, actionCount)
	if err != nil {
		return 0, fmt.Errorf("end session: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateSuspiciousVerdict writes only the verdict fields; it may race with End
// and with the reaper, and the field sets are disjoint so last-write-wins is
// acceptable.
func (r *sessionRepo) UpdateSuspiciousVerdict(ctx context.Context, db DBTX, id uuid.UUID, suspicious bool, flags string, detectedAt time.Time) error {
	tag, err := db.Exec(ctx, `
		UPDATE sessions
		SET suspicious = $2, suspicious_flag = NULLIF($3, ''), suspicious_at = $4, analyzed = true
		WHERE id = $1`,
		id, suspicious, flags, detectedAt)
	if err != nil {
		return fmt.Errorf("update session verdict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("session", id.String())
	}
	return nil
}

func (r *sessionRepo) ListActiveAfter(ctx context.Context, db DBTX, cursor int64, limit int) ([]domain.Session, error) {
	rows, err := db.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE active AND seq > $1
		ORDER BY seq ASC
		LIMIT $2`, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *sessionRepo) ListRecentByUser(ctx context.Context, db DBTX, tenantID uuid.UUID, userID string, exclude uuid.UUID, limit int) ([]domain.Session, error) {
	rows, err := db.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE tenant_id = $1 AND user_id = $2 AND id <> $3
		ORDER BY login_time DESC
		LIMIT $4`, tenantID, userID, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]domain.Session, error) {
	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.Seq, &s.TenantID, &s.UserID, &s.IP,
		&s.Device.Fingerprint, &s.Device.Browser, &s.Device.Type, &s.Device.OS, &s.Device.Language, &s.Device.Resolution,
		&s.Geo.Country, &s.Geo.City, &s.Geo.Region, &s.Geo.Postal, &s.Geo.Latitude, &s.Geo.Longitude, &s.Geo.ISP, &s.Geo.Timezone, &s.Geo.IsVPN,
		&s.LocalLoginTime, &s.LoginTime, &s.LogoutTime, &s.Active, &s.Analyzed,
		&s.Suspicious, &s.SuspiciousFlag, &s.SuspiciousAt, &s.ActionCount,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}
