package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/trackshield/platform/internal/domain"
)

type activityRepo struct{}

// NewActivityRepository returns a pgx-backed ActivityRepository.
func NewActivityRepository() ActivityRepository {
	return &activityRepo{}
}

const activityColumns = `id, tenant_id, session_id, action, product_ref, occurred_at,
	metadata, response_code, response_time_ms`

func (r *activityRepo) Append(ctx context.Context, db DBTX, e *domain.ActivityLogEntry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO activity_log (id, tenant_id, session_id, action, product_ref, occurred_at, metadata, response_code, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'::jsonb), $8, $9)`,
		e.ID, e.TenantID, e.SessionID, e.Action, e.ProductRef, e.OccurredAt,
		e.Metadata, e.ResponseCode, e.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (r *activityRepo) LatestBySession(ctx context.Context, db DBTX, sessionID uuid.UUID) (*domain.ActivityLogEntry, error) {
	row := db.QueryRow(ctx, `
		SELECT `+activityColumns+` FROM activity_log
		WHERE session_id = $1
		ORDER BY occurred_at DESC
		LIMIT 1`, sessionID)
	return scanActivity(row)
}

func (r *activityRepo) CountBySession(ctx context.Context, db DBTX, sessionID uuid.UUID) (int, error) {
	var n int
	err := db.QueryRow(ctx,
		`SELECT count(*) FROM activity_log WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return n, nil
}

func (r *activityRepo) ListBySession(ctx context.Context, db DBTX, sessionID uuid.UUID, limit int) ([]domain.ActivityLogEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT `+activityColumns+` FROM activity_log
		WHERE session_id = $1
		ORDER BY occurred_at ASC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityLogEntry
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanActivity(row pgx.Row) (*domain.ActivityLogEntry, error) {
	var e domain.ActivityLogEntry
	err := row.Scan(
		&e.ID, &e.TenantID, &e.SessionID, &e.Action, &e.ProductRef, &e.OccurredAt,
		&e.Metadata, &e.ResponseCode, &e.ResponseTimeMs,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan activity: %w", err)
	}
	return &e, nil
}
