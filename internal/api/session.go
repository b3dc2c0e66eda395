package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lecternhq/lectern/internal/session"
)

const maxTitleLength = 200

type sessionHandler struct {
	store  SessionStore
	logger *slog.Logger
}

type createSessionRequest struct {
	Title string `json:"title"`
}

// createSession handles POST /api/v1/sessions.
func (h *sessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}
	if len(req.Title) > maxTitleLength {
		WriteError(w, http.StatusBadRequest, "title_too_long", "title must be 200 characters or fewer", h.logger)
		return
	}

	sess, err := h.store.Create(r.Context(), req.Title)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, sess)
}

// listSessions handles GET /api/v1/sessions?limit=50.
func (h *sessionHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", 50), 200)

	sessions, err := h.store.List(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// getSession handles GET /api/v1/sessions/{id}.
func (h *sessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, sess)
}

// getMessages handles GET /api/v1/sessions/{id}/messages.
func (h *sessionHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// History returns no error for a missing session, so existence is
	// checked first to distinguish empty from absent.
	if _, err := h.store.Get(r.Context(), id); err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	messages, err := h.store.History(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	if messages == nil {
		messages = []session.Message{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// deleteSession handles DELETE /api/v1/sessions/{id}.
func (h *sessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
		return
	}
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
