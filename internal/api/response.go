package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// errorBody is the JSON shape of all error responses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
// The body is encoded into a buffer first so headers are only sent after
// successful encoding and a proper 500 can be returned on failure.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("failed to write response body", "error", err)
	}
}

// WriteError writes a structured JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	if logger != nil && status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "code", code)
	}
	WriteJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// parseIntParam reads an integer query parameter, falling back to def when
// missing or malformed.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// decodeJSON decodes a request body into dst, rejecting unknown fields and
// oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
