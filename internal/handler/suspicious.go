package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/service"
)

// SuspiciousHandler exposes the tenant-scoped verdict queries.
type SuspiciousHandler struct {
	verdicts *service.SuspiciousService
}

// NewSuspiciousHandler creates a new SuspiciousHandler.
func NewSuspiciousHandler(verdicts *service.SuspiciousService) *SuspiciousHandler {
	return &SuspiciousHandler{verdicts: verdicts}
}

// List handles GET /v1/suspicious.
func (h *SuspiciousHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.ListQuery{
		Range:   q.Get("range"),
		Device:  q.Get("device"),
		Country: q.Get("country"),
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(w, domain.ErrValidation("malformed from timestamp"))
			return
		}
		query.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(w, domain.ErrValidation("malformed to timestamp"))
			return
		}
		query.To = &t
	}

	verdicts, err := h.verdicts.List(r.Context(), TenantFrom(r.Context()).ID, query)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"items": verdicts,
		"count": len(verdicts),
	})
}

// GetBySession handles GET /v1/suspicious/session/{sessionID}.
func (h *SuspiciousHandler) GetBySession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("malformed session id"))
		return
	}

	verdicts, err := h.verdicts.FindBySession(r.Context(), TenantFrom(r.Context()).ID, sessionID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{"items": verdicts})
}

// Clear handles POST /v1/suspicious/{id}/clear.
func (h *SuspiciousHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("malformed verdict id"))
		return
	}

	if err := h.verdicts.Clear(r.Context(), TenantFrom(r.Context()).ID, id); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
