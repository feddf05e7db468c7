package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/infra"
	"github.com/trackshield/platform/internal/repository"
)

// TenantService is the admission gate and key administration surface.
type TenantService struct {
	db      repository.DBTX
	tenants repository.TenantRepository
}

// NewTenantService creates a new TenantService.
func NewTenantService(db repository.DBTX, tenants repository.TenantRepository) *TenantService {
	return &TenantService{db: db, tenants: tenants}
}

// HashKey is the one-way lookup hash of a raw API key.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

func newRawKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "tsk_" + hex.EncodeToString(buf), nil
}

// Admit validates and meters a raw API key. The quota check and decrement run
// in one conditional update; on refusal a plain read classifies the reason so
// the caller sees the right error kind. Fails closed.
func (s *TenantService) Admit(ctx context.Context, rawKey string) (*domain.Tenant, error) {
	if rawKey == "" {
		infra.AdmissionDenied.WithLabelValues(string(domain.DenyUnknownKey)).Inc()
		return nil, domain.ErrUnauthorized("missing API key")
	}

	keyHash := HashKey(rawKey)

	tenant, err := s.tenants.ConsumeQuota(ctx, s.db, keyHash)
	if err != nil {
		return nil, domain.ErrInternal("consume quota", err)
	}
	if tenant != nil {
		return tenant, nil
	}

	reason := s.classifyDenial(ctx, keyHash)
	infra.AdmissionDenied.WithLabelValues(string(reason)).Inc()

	switch reason {
	case domain.DenyExhausted:
		return nil, domain.ErrQuotaExhausted()
	case domain.DenyRevoked:
		return nil, domain.ErrUnauthorized("API key revoked")
	case domain.DenyExpired:
		return nil, domain.ErrUnauthorized("API key expired")
	case domain.DenyInactive:
		return nil, domain.ErrUnauthorized("API key inactive")
	default:
		return nil, domain.ErrUnauthorized("invalid API key")
	}
}

func (s *TenantService) classifyDenial(ctx context.Context, keyHash string) domain.AdmitDenialReason {
	tenant, err := s.tenants.FindByKeyHash(ctx, s.db, keyHash)
	if err != nil || tenant == nil {
		return domain.DenyUnknownKey
	}
	switch {
	case tenant.Revoked:
		return domain.DenyRevoked
	case !tenant.Active:
		return domain.DenyInactive
	case !tenant.ExpiresAt.After(time.Now()):
		return domain.DenyExpired
	default:
		return domain.DenyExhausted
	}
}

// CreateInput holds the fields for provisioning a tenant.
type CreateInput struct {
	Name         string    `json:"name"`
	ContactEmail string    `json:"contact_email"`
	Plan         string    `json:"plan"`
	RequestLimit int64     `json:"request_limit"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CreateResult carries the raw key, shown exactly once.
type CreateResult struct {
	Tenant *domain.Tenant `json:"tenant"`
	RawKey string         `json:"api_key"`
}

// Create provisions a tenant and mints its API key.
func (s *TenantService) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.Name == "" {
		return nil, domain.ErrValidation("tenant name is required")
	}
	if input.ContactEmail == "" {
		return nil, domain.ErrValidation("contact email is required")
	}
	if input.RequestLimit <= 0 {
		return nil, domain.ErrValidation("request limit must be positive")
	}
	if !input.ExpiresAt.After(time.Now()) {
		return nil, domain.ErrValidation("expiry must be in the future")
	}

	rawKey, err := newRawKey()
	if err != nil {
		return nil, domain.ErrInternal("generate key", err)
	}

	tenant := &domain.Tenant{
		ID:           uuid.New(),
		Name:         input.Name,
		ContactEmail: input.ContactEmail,
		KeyHash:      HashKey(rawKey),
		Plan:         input.Plan,
		ExpiresAt:    input.ExpiresAt,
		RequestLimit: input.RequestLimit,
		Active:       true,
	}
	if err := s.tenants.Create(ctx, s.db, tenant); err != nil {
		return nil, domain.ErrInternal("create tenant", err)
	}

	return &CreateResult{Tenant: tenant, RawKey: rawKey}, nil
}

// Renew resets plan, limit, expiry and the revoked flag in one update.
func (s *TenantService) Renew(ctx context.Context, id uuid.UUID, input domain.RenewInput) error {
	if input.RequestLimit <= 0 {
		return domain.ErrValidation("request limit must be positive")
	}
	if !input.ExpiresAt.After(time.Now()) {
		return domain.ErrValidation("expiry must be in the future")
	}
	return s.tenants.Renew(ctx, s.db, id, input)
}

// Revoke disables the key; Admit fails from then on regardless of quota.
func (s *TenantService) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.tenants.Revoke(ctx, s.db, id)
}

// Regenerate rotates the key secret, preserving quota and plan. Returns the
// new raw key, shown exactly once.
func (s *TenantService) Regenerate(ctx context.Context, id uuid.UUID) (string, error) {
	rawKey, err := newRawKey()
	if err != nil {
		return "", domain.ErrInternal("generate key", err)
	}
	if err := s.tenants.Regenerate(ctx, s.db, id, HashKey(rawKey)); err != nil {
		return "", err
	}
	return rawKey, nil
}
