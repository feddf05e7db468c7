package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/service"
)

// sessionIDHeader lets the tracking snippet name its existing session.
const sessionIDHeader = "X-Session-ID"

// SessionHandler handles session ingestion, end and activity endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Ingest handles POST /v1/sessions.
func (h *SessionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var input service.IngestInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}
	input.SessionID = r.Header.Get(sessionIDHeader)

	session, err := h.sessions.Ingest(r.Context(), TenantFrom(r.Context()), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, map[string]string{"sessionId": session.ID.String()})
}

// End handles POST /v1/sessions/{id}/end.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("malformed session id"))
		return
	}

	session, err := h.sessions.End(r.Context(), TenantFrom(r.Context()), id)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, session)
}

// RecordActivity handles POST /v1/sessions/{id}/activity.
func (h *SessionHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("malformed session id"))
		return
	}

	var input service.ActivityInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	entry, err := h.sessions.RecordActivity(r.Context(), TenantFrom(r.Context()), id, input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, entry)
}
