package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/service"
)

// TenantHandler is the operator-facing API-key administration surface.
type TenantHandler struct {
	tenants *service.TenantService
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(tenants *service.TenantService) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// Create handles POST /v1/tenants.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	result, err := h.tenants.Create(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}

// Renew handles POST /v1/tenants/{id}/renew.
func (h *TenantHandler) Renew(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("malformed tenant id"))
		return
	}

	var input domain.RenewInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	if err := h.tenants.Renew(r.Context(), id, input); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "renewed"})
}

// Revoke handles POST /v1/tenants/{id}/revoke.
func (h *TenantHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("malformed tenant id"))
		return
	}

	if err := h.tenants.Revoke(r.Context(), id); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// Regenerate handles POST /v1/tenants/{id}/regenerate.
func (h *TenantHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("malformed tenant id"))
		return
	}

	rawKey, err := h.tenants.Regenerate(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"api_key": rawKey})
}
