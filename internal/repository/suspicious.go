package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/trackshield/platform/internal/domain"
)

type suspiciousRepo struct{}

// NewSuspiciousRepository returns a pgx-backed SuspiciousRepository.
func NewSuspiciousRepository() SuspiciousRepository {
	return &suspiciousRepo{}
}

const suspiciousColumns = `id, dedup_key, tenant_id, session_id, user_id, score, level,
	flags, detected_at, is_suspicious, created_at`

// Upsert keys on dedup_key so a redelivered queue message overwrites its own
// verdict instead of inserting a duplicate.
func (r *suspiciousRepo) Upsert(ctx context.Context, db DBTX, v *domain.SuspiciousActivity) error {
	_, err := db.Exec(ctx, `
		INSERT INTO suspicious_activities
			(id, dedup_key, tenant_id, session_id, user_id, score, level, flags, detected_at, is_suspicious)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dedup_key) DO UPDATE
		SET score = EXCLUDED.score,
		    level = EXCLUDED.level,
		    flags = EXCLUDED.flags,
		    detected_at = EXCLUDED.detected_at,
		    is_suspicious = EXCLUDED.is_suspicious`,
		v.ID, v.DedupKey, v.TenantID, v.SessionID, v.UserID,
		v.Score, string(v.Level), v.Flags, v.DetectedAt, v.IsSuspicious,
	)
	if err != nil {
		return fmt.Errorf("upsert verdict: %w", err)
	}
	return nil
}

func (r *suspiciousRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.SuspiciousActivity, error) {
	row := db.QueryRow(ctx, `SELECT `+suspiciousColumns+` FROM suspicious_activities WHERE id = $1`, id)
	return scanSuspicious(row)
}

func (r *suspiciousRepo) FindBySession(ctx context.Context, db DBTX, tenantID, sessionID uuid.UUID) ([]domain.SuspiciousActivity, error) {
	rows, err := db.Query(ctx, `
		SELECT `+suspiciousColumns+` FROM suspicious_activities
		WHERE tenant_id = $1 AND session_id = $2
		ORDER BY detected_at DESC`, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find verdicts by session: %w", err)
	}
	defer rows.Close()
	return collectSuspicious(rows)
}

func (r *suspiciousRepo) ListByTenant(ctx context.Context, db DBTX, tenantID uuid.UUID, filter domain.VerdictFilter, limit int) ([]domain.SuspiciousActivity, error) {
	where := []string{"sa.tenant_id = $1"}
	args := []interface{}{tenantID}
	argIdx := 2

	if filter.From != nil {
		where = append(where, fmt.Sprintf("sa.detected_at >= $%d", argIdx))
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("sa.detected_at <= $%d", argIdx))
		args = append(args, *filter.To)
		argIdx++
	}
	if filter.Device != "" {
		where = append(where, fmt.Sprintf("s.device_fingerprint = $%d", argIdx))
		args = append(args, filter.Device)
		argIdx++
	}
	if filter.Country != "" {
		where = append(where, fmt.Sprintf("s.geo_country = $%d", argIdx))
		args = append(args, filter.Country)
		argIdx++
	}

	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT sa.id, sa.dedup_key, sa.tenant_id, sa.session_id, sa.user_id, sa.score, sa.level,
		       sa.flags, sa.detected_at, sa.is_suspicious, sa.created_at
		FROM suspicious_activities sa
		JOIN sessions s ON s.id = sa.session_id
		WHERE %s
		ORDER BY sa.detected_at DESC
		LIMIT $%d`, strings.Join(where, " AND "), argIdx)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	defer rows.Close()
	return collectSuspicious(rows)
}

// Clear flips is_suspicious and the level without deleting the row, keeping
// the audit trail. A second clear matches zero rows and is a no-op.
func (r *suspiciousRepo) Clear(ctx context.Context, db DBTX, id uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE suspicious_activities
		SET is_suspicious = false, level = 'cleared'
		WHERE id = $1 AND is_suspicious`, id)
	if err != nil {
		return fmt.Errorf("clear verdict: %w", err)
	}
	return nil
}

func collectSuspicious(rows pgx.Rows) ([]domain.SuspiciousActivity, error) {
	var out []domain.SuspiciousActivity
	for rows.Next() {
		v, err := scanSuspicious(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanSuspicious(row pgx.Row) (*domain.SuspiciousActivity, error) {
	var v domain.SuspiciousActivity
	var level string
	err := row.Scan(
		&v.ID, &v.DedupKey, &v.TenantID, &v.SessionID, &v.UserID, &v.Score, &level,
		&v.Flags, &v.DetectedAt, &v.IsSuspicious, &v.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan verdict: %w", err)
	}
	v.Level = domain.RiskLevel(level)
	return &v, nil
}
