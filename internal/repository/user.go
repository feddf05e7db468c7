package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/trackshield/platform/internal/domain"
)

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

func (r *userRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.User, error) {
	row := db.QueryRow(ctx,
		`SELECT id, tenant_id, email, created_at FROM users WHERE id = $1`, id)

	var u domain.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// BindTenant stamps the owning tenant on a user the first time the user shows
// up in that tenant's traffic. An existing binding is left alone.
func (r *userRepo) BindTenant(ctx context.Context, db DBTX, id string, tenantID uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE users SET tenant_id = $2 WHERE id = $1 AND tenant_id IS NULL`,
		id, tenantID)
	if err != nil {
		return fmt.Errorf("bind user tenant: %w", err)
	}
	return nil
}
