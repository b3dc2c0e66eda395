package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lecternhq/lectern/internal/translate"
)

const maxTranslateLength = 20000

// Translator renders text into another language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (translated string, cached bool, err error)
}

type translateHandler struct {
	translator Translator
	logger     *slog.Logger
}

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	Translated string `json:"translated"`
	TargetLang string `json:"target_lang"`
	Cached     bool   `json:"cached"`
}

// translateText handles POST /api/v1/translate.
func (h *translateHandler) translateText(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}
	if req.Text == "" || req.TargetLang == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "text and target_lang are required", h.logger)
		return
	}
	if len(req.Text) > maxTranslateLength {
		WriteError(w, http.StatusBadRequest, "text_too_long", "text must be 20000 characters or fewer", h.logger)
		return
	}

	translated, cached, err := h.translator.Translate(r.Context(), req.Text, req.TargetLang)
	if errors.Is(err, translate.ErrProvider) {
		h.logger.Error("translation provider unavailable", "error", err)
		WriteError(w, http.StatusBadGateway, "provider_unavailable", "translation provider unavailable", h.logger)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "translate_failed", "translation failed", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, translateResponse{
		Translated: translated,
		TargetLang: req.TargetLang,
		Cached:     cached,
	})
}
