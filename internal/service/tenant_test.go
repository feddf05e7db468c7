package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/repository"
)

// stubTenantRepo mirrors the conditional-update semantics of the real
// admission query against an in-memory record.
type stubTenantRepo struct {
	tenant  *domain.Tenant
	created []*domain.Tenant
	hashes  []string
}

func (f *stubTenantRepo) Create(ctx context.Context, db repository.DBTX, t *domain.Tenant) error {
	f.created = append(f.created, t)
	return nil
}

func (f *stubTenantRepo) FindByID(ctx context.Context, db repository.DBTX, id uuid.UUID) (*domain.Tenant, error) {
	return f.tenant, nil
}

func (f *stubTenantRepo) ConsumeQuota(ctx context.Context, db repository.DBTX, keyHash string) (*domain.Tenant, error) {
	t := f.tenant
	if t == nil || t.KeyHash != keyHash || t.Revoked || !t.Active ||
		!t.ExpiresAt.After(time.Now()) || t.RequestLimit <= 0 {
		return nil, nil
	}
	t.RequestLimit--
	copied := *t
	return &copied, nil
}

func (f *stubTenantRepo) FindByKeyHash(ctx context.Context, db repository.DBTX, keyHash string) (*domain.Tenant, error) {
	if f.tenant == nil || f.tenant.KeyHash != keyHash {
		return nil, nil
	}
	return f.tenant, nil
}

func (f *stubTenantRepo) Renew(ctx context.Context, db repository.DBTX, id uuid.UUID, input domain.RenewInput) error {
	return nil
}

func (f *stubTenantRepo) Regenerate(ctx context.Context, db repository.DBTX, id uuid.UUID, newKeyHash string) error {
	f.hashes = append(f.hashes, newKeyHash)
	return nil
}

func (f *stubTenantRepo) Revoke(ctx context.Context, db repository.DBTX, id uuid.UUID) error {
	if f.tenant != nil {
		f.tenant.Revoked = true
	}
	return nil
}

func validTenant(rawKey string) *domain.Tenant {
	return &domain.Tenant{
		ID:           uuid.New(),
		Name:         "acme",
		ContactEmail: "ops@acme.test",
		KeyHash:      HashKey(rawKey),
		Plan:         "standard",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		RequestLimit: 2,
		Active:       true,
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestAdmitConsumesQuota(t *testing.T) {
	repo := &stubTenantRepo{tenant: validTenant("tsk_good")}
	svc := NewTenantService(nil, repo)

	tenant, err := svc.Admit(context.Background(), "tsk_good")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, int64(1), tenant.RequestLimit, "each admit spends one request")
}

func TestAdmitMissingKey(t *testing.T) {
	svc := NewTenantService(nil, &stubTenantRepo{})

	_, err := svc.Admit(context.Background(), "")
	assert.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestAdmitUnknownKey(t *testing.T) {
	repo := &stubTenantRepo{tenant: validTenant("tsk_good")}
	svc := NewTenantService(nil, repo)

	_, err := svc.Admit(context.Background(), "tsk_wrong")
	assert.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestAdmitExhaustedQuota(t *testing.T) {
	tenant := validTenant("tsk_good")
	tenant.RequestLimit = 0
	repo := &stubTenantRepo{tenant: tenant}
	svc := NewTenantService(nil, repo)

	_, err := svc.Admit(context.Background(), "tsk_good")
	assert.Equal(t, "QUOTA_EXHAUSTED", appCode(t, err))

	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 429, appErr.Status)
}

func TestAdmitRevokedKey(t *testing.T) {
	tenant := validTenant("tsk_good")
	tenant.Revoked = true
	repo := &stubTenantRepo{tenant: tenant}
	svc := NewTenantService(nil, repo)

	_, err := svc.Admit(context.Background(), "tsk_good")
	assert.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestAdmitExpiredKey(t *testing.T) {
	tenant := validTenant("tsk_good")
	tenant.ExpiresAt = time.Now().Add(-time.Hour)
	repo := &stubTenantRepo{tenant: tenant}
	svc := NewTenantService(nil, repo)

	_, err := svc.Admit(context.Background(), "tsk_good")
	assert.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestAdmitLastRequestThenExhausted(t *testing.T) {
	tenant := validTenant("tsk_good")
	tenant.RequestLimit = 1
	repo := &stubTenantRepo{tenant: tenant}
	svc := NewTenantService(nil, repo)

	_, err := svc.Admit(context.Background(), "tsk_good")
	require.NoError(t, err, "the last unit of quota still admits")

	_, err = svc.Admit(context.Background(), "tsk_good")
	assert.Equal(t, "QUOTA_EXHAUSTED", appCode(t, err))
}

func TestCreateMintsKey(t *testing.T) {
	repo := &stubTenantRepo{}
	svc := NewTenantService(nil, repo)

	result, err := svc.Create(context.Background(), CreateInput{
		Name:         "acme",
		ContactEmail: "ops@acme.test",
		Plan:         "standard",
		RequestLimit: 1000,
		ExpiresAt:    time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.RawKey, "tsk_"))
	assert.Equal(t, HashKey(result.RawKey), result.Tenant.KeyHash, "only the hash is stored")
	assert.True(t, result.Tenant.Active)
	require.Len(t, repo.created, 1)
}

func TestCreateValidation(t *testing.T) {
	svc := NewTenantService(nil, &stubTenantRepo{})
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing name", CreateInput{ContactEmail: "a@b.c", RequestLimit: 1, ExpiresAt: future}},
		{"missing email", CreateInput{Name: "acme", RequestLimit: 1, ExpiresAt: future}},
		{"zero limit", CreateInput{Name: "acme", ContactEmail: "a@b.c", ExpiresAt: future}},
		{"past expiry", CreateInput{Name: "acme", ContactEmail: "a@b.c", RequestLimit: 1, ExpiresAt: time.Now().Add(-time.Hour)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			assert.Equal(t, "VALIDATION_ERROR", appCode(t, err))
		})
	}
}

func TestRegenerateRotatesHash(t *testing.T) {
	repo := &stubTenantRepo{tenant: validTenant("tsk_old")}
	svc := NewTenantService(nil, repo)

	rawKey, err := svc.Regenerate(context.Background(), repo.tenant.ID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rawKey, "tsk_"))
	require.Len(t, repo.hashes, 1)
	assert.Equal(t, HashKey(rawKey), repo.hashes[0])
	assert.NotEqual(t, HashKey("tsk_old"), repo.hashes[0])
}

func TestRevokeBlocksAdmission(t *testing.T) {
	repo := &stubTenantRepo{tenant: validTenant("tsk_good")}
	svc := NewTenantService(nil, repo)

	require.NoError(t, svc.Revoke(context.Background(), repo.tenant.ID))

	_, err := svc.Admit(context.Background(), "tsk_good")
	assert.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestHashKeyIsDeterministicHex(t *testing.T) {
	h1 := HashKey("tsk_example")
	h2 := HashKey("tsk_example")

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashKey("tsk_other"))
}
