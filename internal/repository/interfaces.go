package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/trackshield/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TenantRepository provides access to tenants (the API-key quota records).
type TenantRepository interface {
	// Create inserts a new tenant with its key hash.
	Create(ctx context.Context, db DBTX, tenant *domain.Tenant) error

	// FindByID returns a tenant by id, nil when absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Tenant, error)

	// ConsumeQuota is the admission CAS: one conditional update that checks
	// revocation, activity, expiry and remaining quota, and decrements the
	// counter in the same statement. Returns nil when no row qualified.
	ConsumeQuota(ctx context.Context, db DBTX, keyHash string) (*domain.Tenant, error)

	// FindByKeyHash reads the tenant without consuming quota, used to
	// classify an admission refusal.
	FindByKeyHash(ctx context.Context, db DBTX, keyHash string) (*domain.Tenant, error)

	// Renew resets plan, limit, expiry and the revoked flag in one update.
	Renew(ctx context.Context, db DBTX, id uuid.UUID, input domain.RenewInput) error

	// Regenerate swaps the key hash, preserving quota and plan.
	Regenerate(ctx context.Context, db DBTX, id uuid.UUID, newKeyHash string) error

	// Revoke flips the revoked flag; Admit fails from then on.
	Revoke(ctx context.Context, db DBTX, id uuid.UUID) error
}

// SessionRepository owns the session lifecycle records.
type SessionRepository interface {
	// Insert creates a new active session.
	Insert(ctx context.Context, db DBTX, s *domain.Session) error

	// FindByID returns a session by id, nil when absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error)

	// BindUser sets the user id on a still-anonymous session.
	BindUser(ctx context.Context, db DBTX, id uuid.UUID, userID string) error

	// End closes the session. Returns the number of rows affected so the
	// caller can distinguish an already-ended session.
	End(ctx context.Context, db DBTX, id uuid.UUID, logoutTime time.Time, actionCount int) (int64, error)

	// UpdateSuspiciousVerdict updates the verdict fields and marks the
	// session analyzed. Never touches active or logout_time.
	UpdateSuspiciousVerdict(ctx context.Context, db DBTX, id uuid.UUID, suspicious bool, flags string, detectedAt time.Time) error

	// ListActiveAfter returns up to limit active sessions with seq greater
	// than the cursor, ordered by seq. The reaper's scan.
	ListActiveAfter(ctx context.Context, db DBTX, cursor int64, limit int) ([]domain.Session, error)

	// ListRecentByUser returns the most recent prior sessions for a
	// (tenant, user) pair, newest first, excluding the given session.
	ListRecentByUser(ctx context.Context, db DBTX, tenantID uuid.UUID, userID string, exclude uuid.UUID, limit int) ([]domain.Session, error)
}

// ActivityRepository is the append-only in-session event log.
type ActivityRepository interface {
	// Append inserts one entry.
	Append(ctx context.Context, db DBTX, entry *domain.ActivityLogEntry) error

	// LatestBySession returns the most recent entry for a session, nil when
	// the session has no activity yet.
	LatestBySession(ctx context.Context, db DBTX, sessionID uuid.UUID) (*domain.ActivityLogEntry, error)

	// CountBySession returns the number of entries for a session.
	CountBySession(ctx context.Context, db DBTX, sessionID uuid.UUID) (int, error)

	// ListBySession returns entries ordered by occurred_at ascending.
	ListBySession(ctx context.Context, db DBTX, sessionID uuid.UUID, limit int) ([]domain.ActivityLogEntry, error)
}

// SuspiciousRepository persists scoring verdicts.
type SuspiciousRepository interface {
	// Upsert inserts a verdict or, on a dedup-key collision from message
	// redelivery, overwrites the scored fields of the existing row.
	Upsert(ctx context.Context, db DBTX, v *domain.SuspiciousActivity) error

	// FindByID returns a verdict by id, nil when absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.SuspiciousActivity, error)

	// FindBySession returns verdicts for one session, newest first.
	FindBySession(ctx context.Context, db DBTX, tenantID, sessionID uuid.UUID) ([]domain.SuspiciousActivity, error)

	// ListByTenant returns verdicts for a tenant with optional filters,
	// newest first.
	ListByTenant(ctx context.Context, db DBTX, tenantID uuid.UUID, filter domain.VerdictFilter, limit int) ([]domain.SuspiciousActivity, error)

	// Clear marks a verdict safe. Idempotent; the record is never deleted.
	Clear(ctx context.Context, db DBTX, id uuid.UUID) error
}

// UserRepository is the thin surface over user records consumed here: reading
// a user and binding it to a tenant. Everything else about identity lives
// elsewhere.
type UserRepository interface {
	FindByID(ctx context.Context, db DBTX, id string) (*domain.User, error)
	BindTenant(ctx context.Context, db DBTX, id string, tenantID uuid.UUID) error
}
