package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lecternhq/lectern/internal/course"
)

const maxAnswerLength = 20000

// CourseStore exposes the course catalog.
type CourseStore interface {
	ListModules(ctx context.Context) ([]course.Module, error)
	GetModule(ctx context.Context, slug string) (*course.Module, error)
	ListWeeks(ctx context.Context, moduleID string) ([]course.Week, error)
	ListAllWeeks(ctx context.Context) ([]course.Week, error)
	GetWeek(ctx context.Context, weekID string) (*course.Week, error)
	ListExercises(ctx context.Context, weekID string) ([]course.Exercise, error)
	FindExercises(ctx context.Context, filter course.ExerciseFilter) ([]course.Exercise, error)
	GetExercise(ctx context.Context, exerciseID string) (*course.Exercise, error)
	SubmitAnswer(ctx context.Context, exerciseID, userID, answer string) (*course.Submission, error)
	ListSubmissions(ctx context.Context, exerciseID, userID string) ([]course.Submission, error)
	SetProgress(ctx context.Context, userID, weekID string, completed bool) (*course.Progress, error)
	GetProgress(ctx context.Context, userID, moduleID string) ([]course.Progress, error)
}

type courseHandler struct {
	store  CourseStore
	logger *slog.Logger
}

// listModules handles GET /api/v1/modules.
func (h *courseHandler) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.store.ListModules(r.Context())
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	if modules == nil {
		modules = []course.Module{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"modules": modules})
}

// getModule handles GET /api/v1/modules/{slug}.
func (h *courseHandler) getModule(w http.ResponseWriter, r *http.Request) {
	mod, err := h.store.GetModule(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, mod)
}

// listWeeks handles GET /api/v1/modules/{slug}/weeks.
func (h *courseHandler) listWeeks(w http.ResponseWriter, r *http.Request) {
	mod, err := h.store.GetModule(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}

	weeks, err := h.store.ListWeeks(r.Context(), mod.ID.String())
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	if weeks == nil {
		weeks = []course.Week{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"weeks": weeks})
}

// listAllWeeks handles GET /api/v1/weeks.
func (h *courseHandler) listAllWeeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := h.store.ListAllWeeks(r.Context())
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	if weeks == nil {
		weeks = []course.Week{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"weeks": weeks})
}

// getWeek handles GET /api/v1/weeks/{id}.
func (h *courseHandler) getWeek(w http.ResponseWriter, r *http.Request) {
	week, err := h.store.GetWeek(r.Context(), r.PathValue("id"))
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, week)
}

// listExercises handles GET /api/v1/weeks/{id}/exercises.
func (h *courseHandler) listExercises(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.store.GetWeek(r.Context(), id); err != nil {
		writeCourseError(w, err, h.logger)
		return
	}

	exercises, err := h.store.ListExercises(r.Context(), id)
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	if exercises == nil {
		exercises = []course.Exercise{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"exercises": exercises})
}

// findExercises handles GET /api/v1/exercises?module_id=&week_id=.
// Unfiltered it returns the whole exercise catalog; module_id wins when
// both filters are given.
func (h *courseHandler) findExercises(w http.ResponseWriter, r *http.Request) {
	filter := course.ExerciseFilter{
		ModuleID: r.URL.Query().Get("module_id"),
		WeekID:   r.URL.Query().Get("week_id"),
	}

	exercises, err := h.store.FindExercises(r.Context(), filter)
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	if exercises == nil {
		exercises = []course.Exercise{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"exercises": exercises})
}

// getExercise handles GET /api/v1/exercises/{id}.
func (h *courseHandler) getExercise(w http.ResponseWriter, r *http.Request) {
	ex, err := h.store.GetExercise(r.Context(), r.PathValue("id"))
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, ex)
}

// listSubmissions handles GET /api/v1/exercises/{id}/submissions?user_id=.
func (h *courseHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "missing_user", "query parameter 'user_id' is required", h.logger)
		return
	}

	if _, err := h.store.GetExercise(r.Context(), r.PathValue("id")); err != nil {
		writeCourseError(w, err, h.logger)
		return
	}

	subs, err := h.store.ListSubmissions(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	if subs == nil {
		subs = []course.Submission{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

type submitAnswerRequest struct {
	UserID string `json:"user_id"`
	Answer string `json:"answer"`
}

// submitAnswer handles POST /api/v1/exercises/{id}/submissions.
// Submissions are stored as-is; nothing grades them.
func (h *courseHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}
	if req.UserID == "" || req.Answer == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "user_id and answer are required", h.logger)
		return
	}
	if len(req.Answer) > maxAnswerLength {
		WriteError(w, http.StatusBadRequest, "answer_too_long", "answer must be 20000 characters or fewer", h.logger)
		return
	}

	sub, err := h.store.SubmitAnswer(r.Context(), r.PathValue("id"), req.UserID, req.Answer)
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, sub)
}

type setProgressRequest struct {
	UserID    string `json:"user_id"`
	Completed bool   `json:"completed"`
}

// setProgress handles PUT /api/v1/weeks/{id}/progress.
func (h *courseHandler) setProgress(w http.ResponseWriter, r *http.Request) {
	var req setProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}
	if req.UserID == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "user_id is required", h.logger)
		return
	}

	progress, err := h.store.SetProgress(r.Context(), req.UserID, r.PathValue("id"), req.Completed)
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, progress)
}

// getProgress handles GET /api/v1/modules/{slug}/progress?user_id=...
func (h *courseHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "missing_user", "query parameter 'user_id' is required", h.logger)
		return
	}

	mod, err := h.store.GetModule(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}

	records, err := h.store.GetProgress(r.Context(), userID, mod.ID.String())
	if err != nil {
		writeCourseError(w, err, h.logger)
		return
	}
	if records == nil {
		records = []course.Progress{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"progress": records})
}

// writeCourseError maps course store errors to HTTP responses.
// Foreign key violations mean the referenced parent row does not exist.
func writeCourseError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, course.ErrInvalidID):
		WriteError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID", logger)
	case errors.Is(err, course.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "record not found", logger)
	case errors.As(err, &pgErr) && pgErr.Code == "23503":
		WriteError(w, http.StatusNotFound, "not_found", "record not found", logger)
	default:
		logger.Error("course store error", "error", err)
		WriteError(w, http.StatusInternalServerError, "storage_error", "storage failure", logger)
	}
}
