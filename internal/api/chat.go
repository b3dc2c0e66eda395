package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lecternhq/lectern/internal/answer"
	"github.com/lecternhq/lectern/internal/session"
	"github.com/lecternhq/lectern/internal/vector"
)

const (
	maxQuestionLength = 4000
	maxChatTopK       = 10
	defaultChatTopK   = 5
)

// degradedReply is returned when the answer provider is unavailable. The
// student's question is still recorded so the conversation survives.
const degradedReply = "I could not reach the language model just now. " +
	"Your question was saved, please try again in a moment."

// Retriever finds course chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, opts ...vector.SearchOption) ([]vector.Result, error)
}

// Composer produces a grounded answer from retrieved chunks and history.
type Composer interface {
	Compose(ctx context.Context, question string, chunks []vector.Result, history []answer.Turn) (string, error)
}

// SessionStore persists chat sessions and messages.
type SessionStore interface {
	Create(ctx context.Context, title string) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	List(ctx context.Context, limit int) ([]session.Session, error)
	Delete(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, sessionID, role, content string) (*session.Message, error)
	History(ctx context.Context, sessionID string) ([]session.Message, error)
}

type chatHandler struct {
	sessions  SessionStore
	retriever Retriever
	composer  Composer
	logger    *slog.Logger
}

type chatRequest struct {
	Content string `json:"content"`
	TopK    int    `json:"top_k,omitempty"`
}

type chatSource struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float32 `json:"score"`
}

type chatResponse struct {
	Message  *session.Message `json:"message"`
	Sources  []chatSource     `json:"sources"`
	Degraded bool             `json:"degraded,omitempty"`
}

// send handles POST /api/v1/sessions/{id}/messages.
// It records the user turn, retrieves relevant course material, composes an
// answer and records the assistant turn.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}
	if req.Content == "" {
		WriteError(w, http.StatusBadRequest, "missing_content", "message content is required", h.logger)
		return
	}
	if len(req.Content) > maxQuestionLength {
		WriteError(w, http.StatusBadRequest, "content_too_long", "message must be 4000 characters or fewer", h.logger)
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultChatTopK
	}
	if topK > maxChatTopK {
		topK = maxChatTopK
	}

	ctx := r.Context()

	// History is loaded before the new turn is appended so the question is
	// not duplicated in the prompt.
	prior, err := h.sessions.History(ctx, sessionID)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	if _, err := h.sessions.AppendMessage(ctx, sessionID, session.RoleUser, req.Content); err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	var sources []chatSource
	chunks, err := h.retriever.Retrieve(ctx, req.Content, topK)
	if err != nil {
		// Answering from general knowledge beats failing the request.
		h.logger.Warn("retrieval failed, answering without context",
			"error", err, "session_id", sessionID)
		chunks = nil
	}
	for _, c := range chunks {
		sources = append(sources, chatSource{
			ID:    c.ID,
			Title: c.Metadata["title"],
			Score: c.Score,
		})
	}

	history := make([]answer.Turn, len(prior))
	for i, msg := range prior {
		history[i] = answer.Turn{Role: msg.Role, Content: msg.Content}
	}

	reply, err := h.composer.Compose(ctx, req.Content, chunks, history)
	if errors.Is(err, answer.ErrProvider) {
		h.logger.Error("answer provider unavailable", "error", err, "session_id", sessionID)
		WriteJSON(w, http.StatusOK, chatResponse{
			Message: &session.Message{
				Role:    session.RoleAssistant,
				Content: degradedReply,
			},
			Sources:  sources,
			Degraded: true,
		})
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "answer_failed", "failed to compose an answer", h.logger)
		return
	}

	msg, err := h.sessions.AppendMessage(ctx, sessionID, session.RoleAssistant, reply)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, chatResponse{Message: msg, Sources: sources})
}

// writeStoreError maps session store errors to HTTP responses.
func writeStoreError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, session.ErrInvalidID):
		WriteError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID", logger)
	case errors.Is(err, session.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "session not found", logger)
	default:
		logger.Error("session store error", "error", err)
		WriteError(w, http.StatusInternalServerError, "storage_error", "storage failure", logger)
	}
}
