package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/trackshield/platform/internal/domain"
)

type tenantRepo struct{}

// NewTenantRepository returns a pgx-backed TenantRepository.
func NewTenantRepository() TenantRepository {
	return &tenantRepo{}
}

const tenantColumns = `id, name, contact_email, key_hash, plan, expires_at, request_limit,
	revoked, active, reset_at, last_used_at, created_at, updated_at`

func (r *tenantRepo) Create(ctx context.Context, db DBTX, t *domain.Tenant) error {
	_, err := db.Exec(ctx, `
		INSERT INTO tenants (id, name, contact_email, key_hash, plan, expires_at, request_limit, revoked, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, true)`,
		t.ID, t.Name, t.ContactEmail, t.KeyHash, t.Plan, t.ExpiresAt, t.RequestLimit,
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *tenantRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Tenant, error) {
	row := db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (r *tenantRepo) FindByKeyHash(ctx context.Context, db DBTX, keyHash string) (*domain.Tenant, error) {
	row := db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE key_hash = $1`, keyHash)
	return scanTenant(row)
}

// ConsumeQuota checks all four admission conditions and decrements the quota
// inside one statement, so two requests racing on the last unit of quota
// cannot both pass.
func (r *tenantRepo) ConsumeQuota(ctx context.Context, db DBTX, keyHash string) (*domain.Tenant, error) {
	row := db.QueryRow(ctx, `
		UPDATE tenants
		SET request_limit = request_limit - 1,
		    last_used_at  = now(),
		    updated_at    = now()
		WHERE key_hash = $1
		  AND NOT revoked
		  AND active
		  AND expires_at > now()
		  AND request_limit > 0
		RETURNING `+tenantColumns, keyHash)
	return scanTenant(row)
}

func (r *tenantRepo) Renew(ctx context.Context, db DBTX, id uuid.UUID, input domain.RenewInput) error {
	tag, err := db.Exec(ctx, `
		UPDATE tenants
		SET plan = $2, request_limit = $3, expires_at = $4,
		    revoked = false, reset_at = now(), updated_at = now()
		WHERE id = $1`,
		id, input.Plan, input.RequestLimit, input.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("renew tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("tenant", id.String())
	}
	return nil
}

func (r *tenantRepo) Regenerate(ctx context.Context, db DBTX, id uuid.UUID, newKeyHash string) error {
	tag, err := db.Exec(ctx,
		`UPDATE tenants SET key_hash = $2, updated_at = now() WHERE id = $1`, id, newKeyHash)
	if err != nil {
		return fmt.Errorf("regenerate tenant key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("tenant", id.String())
	}
	return nil
}

func (r *tenantRepo) Revoke(ctx context.Context, db DBTX, id uuid.UUID) error {
	tag, err := db.Exec(ctx,
		`UPDATE tenants SET revoked = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("tenant", id.String())
	}
	return nil
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(
		&t.ID, &t.Name, &t.ContactEmail, &t.KeyHash, &t.Plan, &t.ExpiresAt, &t.RequestLimit,
		&t.Revoked, &t.Active, &t.ResetAt, &t.LastUsedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}
