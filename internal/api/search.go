package api

import (
	"log/slog"
	"net/http"
)

const maxSearchQueryLength = 1000

type searchHandler struct {
	retriever Retriever
	logger    *slog.Logger
}

type searchResultItem struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

type searchResponse struct {
	Results  []searchResultItem `json:"results"`
	Degraded bool               `json:"degraded,omitempty"`
}

// search handles GET /api/v1/search?q=...&k=5.
// Retrieval failure degrades to an empty result set rather than an error so
// the content browser stays usable when the vector store is down.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "missing_query", "query parameter 'q' is required", h.logger)
		return
	}
	if len(query) > maxSearchQueryLength {
		WriteError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}

	k := min(parseIntParam(r, "k", defaultChatTopK), maxChatTopK)
	if k < 1 {
		k = 1
	}

	chunks, err := h.retriever.Retrieve(r.Context(), query, k)
	if err != nil {
		h.logger.Error("search retrieval failed", "error", err, "query_len", len(query))
		WriteJSON(w, http.StatusOK, searchResponse{Results: []searchResultItem{}, Degraded: true})
		return
	}

	results := make([]searchResultItem, len(chunks))
	for i, c := range chunks {
		results[i] = searchResultItem{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Title:      c.Metadata["title"],
			Content:    c.Content,
			Score:      c.Score,
		}
	}
	WriteJSON(w, http.StatusOK, searchResponse{Results: results})
}
