// Package course exposes the course catalog: modules, weekly content,
// exercises, submissions and per-user progress.
package course

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("course record not found")
	// ErrInvalidID indicates a malformed UUID.
	ErrInvalidID = errors.New("invalid id")
)

// Module is a top-level course unit.
type Module struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Position    int       `json:"position"`
}

// Week is one week of content inside a module.
type Week struct {
	ID        uuid.UUID `json:"id"`
	ModuleID  uuid.UUID `json:"module_id"`
	Week      int       `json:"week"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	SourceURL string    `json:"source_url"`
}

// Exercise is a practice task attached to a week.
type Exercise struct {
	ID       uuid.UUID `json:"id"`
	WeekID   uuid.UUID `json:"week_id"`
	Title    string    `json:"title"`
	Prompt   string    `json:"prompt"`
	Position int       `json:"position"`
}

// Submission is a student's ungraded answer to an exercise.
type Submission struct {
	ID         uuid.UUID `json:"id"`
	ExerciseID uuid.UUID `json:"exercise_id"`
	UserID     uuid.UUID `json:"user_id"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}

// Progress is a user's completion state for one week.
type Progress struct {
	UserID      uuid.UUID  `json:"user_id"`
	WeekID      uuid.UUID  `json:"week_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Querier is the subset of pgx operations the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides course catalog persistence.
type Store struct {
	db Querier
}

// NewStore creates a course store.
func NewStore(db Querier) (*Store, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &Store{db: db}, nil
}

const listModulesSQL = `
	SELECT id, slug, title, description, position
	FROM course_modules
	ORDER BY position, slug`

// ListModules returns all modules in course order.
func (s *Store) ListModules(ctx context.Context) ([]Module, error) {
	rows, err := s.db.Query(ctx, listModulesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Slug, &m.Title, &m.Description, &m.Position); err != nil {
			return nil, fmt.Errorf("scanning module: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

const getModuleSQL = `
	SELECT id, slug, title, description, position
	FROM course_modules
	WHERE slug = $1`

// GetModule returns a module by slug.
func (s *Store) GetModule(ctx context.Context, slug string) (*Module, error) {
	var m Module
	err := s.db.QueryRow(ctx, getModuleSQL, slug).Scan(
		&m.ID, &m.Slug, &m.Title, &m.Description, &m.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting module: %w", err)
	}
	return &m, nil
}

const upsertModuleSQL = `
	INSERT INTO course_modules (slug, title, description, position)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (slug) DO UPDATE SET
		title       = EXCLUDED.title,
		description = EXCLUDED.description,
		position    = EXCLUDED.position
	RETURNING id, slug, title, description, position`

// UpsertModule creates or updates a module keyed by slug.
func (s *Store) UpsertModule(ctx context.Context, slug, title, description string, position int) (*Module, error) {
	var m Module
	err := s.db.QueryRow(ctx, upsertModuleSQL, slug, title, description, position).Scan(
		&m.ID, &m.Slug, &m.Title, &m.Description, &m.Position)
	if err != nil {
		return nil, fmt.Errorf("upserting module: %w", err)
	}
	return &m, nil
}

const listWeeksSQL = `
	SELECT id, module_id, week, title, body, source_url
	FROM weekly_content
	WHERE module_id = $1
	ORDER BY week`

// ListWeeks returns a module's weekly content in week order.
func (s *Store) ListWeeks(ctx context.Context, moduleID string) ([]Week, error) {
	id, err := uuid.Parse(moduleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, moduleID)
	}

	rows, err := s.db.Query(ctx, listWeeksSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing weeks: %w", err)
	}
	defer rows.Close()

	var weeks []Week
	for rows.Next() {
		var w Week
		if err := rows.Scan(&w.ID, &w.ModuleID, &w.Week, &w.Title, &w.Body, &w.SourceURL); err != nil {
			return nil, fmt.Errorf("scanning week: %w", err)
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

const listAllWeeksSQL = `
	SELECT w.id, w.module_id, w.week, w.title, w.body, w.source_url
	FROM weekly_content w
	JOIN course_modules m ON m.id = w.module_id
	ORDER BY m.position, m.slug, w.week`

// ListAllWeeks returns every week across all modules, in course order.
func (s *Store) ListAllWeeks(ctx context.Context) ([]Week, error) {
	rows, err := s.db.Query(ctx, listAllWeeksSQL)
	if err != nil {
		return nil, fmt.Errorf("listing weeks: %w", err)
	}
	defer rows.Close()

	var weeks []Week
	for rows.Next() {
		var w Week
		if err := rows.Scan(&w.ID, &w.ModuleID, &w.Week, &w.Title, &w.Body, &w.SourceURL); err != nil {
			return nil, fmt.Errorf("scanning week: %w", err)
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

const getWeekSQL = `
	SELECT id, module_id, week, title, body, source_url
	FROM weekly_content
	WHERE id = $1`

// GetWeek returns one week of content by ID.
func (s *Store) GetWeek(ctx context.Context, weekID string) (*Week, error) {
	id, err := uuid.Parse(weekID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, weekID)
	}

	var w Week
	err = s.db.QueryRow(ctx, getWeekSQL, id).Scan(
		&w.ID, &w.ModuleID, &w.Week, &w.Title, &w.Body, &w.SourceURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting week: %w", err)
	}
	return &w, nil
}

const upsertWeekSQL = `
	INSERT INTO weekly_content (module_id, week, title, body, source_url)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (module_id, week) DO UPDATE SET
		title      = EXCLUDED.title,
		body       = EXCLUDED.body,
		source_url = EXCLUDED.source_url
	RETURNING id, module_id, week, title, body, source_url`

// UpsertWeek creates or updates weekly content keyed by (module, week).
func (s *Store) UpsertWeek(ctx context.Context, moduleID string, week int, title, body, sourceURL string) (*Week, error) {
	id, err := uuid.Parse(moduleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, moduleID)
	}

	var w Week
	err = s.db.QueryRow(ctx, upsertWeekSQL, id, week, title, body, sourceURL).Scan(
		&w.ID, &w.ModuleID, &w.Week, &w.Title, &w.Body, &w.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("upserting week: %w", err)
	}
	return &w, nil
}

const listExercisesSQL = `
	SELECT id, week_id, title, prompt, position
	FROM exercises
	WHERE week_id = $1
	ORDER BY position, created_at`

// ListExercises returns a week's exercises in position order.
func (s *Store) ListExercises(ctx context.Context, weekID string) ([]Exercise, error) {
	id, err := uuid.Parse(weekID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, weekID)
	}
	return s.queryExercises(ctx, listExercisesSQL, id)
}

const findExercisesByModuleSQL = `
	SELECT e.id, e.week_id, e.title, e.prompt, e.position
	FROM exercises e
	JOIN weekly_content w ON w.id = e.week_id
	WHERE w.module_id = $1
	ORDER BY w.week, e.position, e.created_at`

const findAllExercisesSQL = `
	SELECT e.id, e.week_id, e.title, e.prompt, e.position
	FROM exercises e
	JOIN weekly_content w ON w.id = e.week_id
	JOIN course_modules m ON m.id = w.module_id
	ORDER BY m.position, m.slug, w.week, e.position, e.created_at`

// ExerciseFilter narrows FindExercises. A set ModuleID wins over WeekID;
// both empty means all exercises.
type ExerciseFilter struct {
	ModuleID string
	WeekID   string
}

// FindExercises returns exercises in course order, optionally filtered
// by module or week.
func (s *Store) FindExercises(ctx context.Context, filter ExerciseFilter) ([]Exercise, error) {
	switch {
	case filter.ModuleID != "":
		id, err := uuid.Parse(filter.ModuleID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidID, filter.ModuleID)
		}
		return s.queryExercises(ctx, findExercisesByModuleSQL, id)
	case filter.WeekID != "":
		return s.ListExercises(ctx, filter.WeekID)
	default:
		return s.queryExercises(ctx, findAllExercisesSQL)
	}
}

func (s *Store) queryExercises(ctx context.Context, sql string, args ...any) ([]Exercise, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing exercises: %w", err)
	}
	defer rows.Close()

	var exercises []Exercise
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.WeekID, &e.Title, &e.Prompt, &e.Position); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

const getExerciseSQL = `
	SELECT id, week_id, title, prompt, position
	FROM exercises
	WHERE id = $1`

// GetExercise returns one exercise by ID.
func (s *Store) GetExercise(ctx context.Context, exerciseID string) (*Exercise, error) {
	id, err := uuid.Parse(exerciseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, exerciseID)
	}

	var e Exercise
	err = s.db.QueryRow(ctx, getExerciseSQL, id).Scan(
		&e.ID, &e.WeekID, &e.Title, &e.Prompt, &e.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting exercise: %w", err)
	}
	return &e, nil
}

const upsertExerciseSQL = `
	INSERT INTO exercises (week_id, title, prompt, position)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (week_id, position) DO UPDATE SET
		title  = EXCLUDED.title,
		prompt = EXCLUDED.prompt
	RETURNING id, week_id, title, prompt, position`

// UpsertExercise creates or updates an exercise keyed by (week, position).
func (s *Store) UpsertExercise(ctx context.Context, weekID, title, prompt string, position int) (*Exercise, error) {
	id, err := uuid.Parse(weekID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, weekID)
	}

	var e Exercise
	err = s.db.QueryRow(ctx, upsertExerciseSQL, id, title, prompt, position).Scan(
		&e.ID, &e.WeekID, &e.Title, &e.Prompt, &e.Position)
	if err != nil {
		return nil, fmt.Errorf("upserting exercise: %w", err)
	}
	return &e, nil
}

const submitAnswerSQL = `
	INSERT INTO exercise_submissions (exercise_id, user_id, answer)
	VALUES ($1, $2, $3)
	RETURNING id, exercise_id, user_id, answer, created_at`

// SubmitAnswer records a student's answer. Answers are not graded.
func (s *Store) SubmitAnswer(ctx context.Context, exerciseID, userID, answer string) (*Submission, error) {
	exID, err := uuid.Parse(exerciseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, exerciseID)
	}
	uID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, userID)
	}

	var sub Submission
	err = s.db.QueryRow(ctx, submitAnswerSQL, exID, uID, answer).Scan(
		&sub.ID, &sub.ExerciseID, &sub.UserID, &sub.Answer, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("submitting answer: %w", err)
	}
	return &sub, nil
}

const listSubmissionsSQL = `
	SELECT id, exercise_id, user_id, answer, created_at
	FROM exercise_submissions
	WHERE exercise_id = $1 AND user_id = $2
	ORDER BY created_at DESC`

// ListSubmissions returns a user's submissions for an exercise, newest first.
func (s *Store) ListSubmissions(ctx context.Context, exerciseID, userID string) ([]Submission, error) {
	exID, err := uuid.Parse(exerciseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, exerciseID)
	}
	uID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, userID)
	}

	rows, err := s.db.Query(ctx, listSubmissionsSQL, exID, uID)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.ExerciseID, &sub.UserID, &sub.Answer, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

const setProgressSQL = `
	INSERT INTO progress (user_id, week_id, completed, completed_at)
	VALUES ($1, $2, $3, CASE WHEN $3 THEN now() END)
	ON CONFLICT (user_id, week_id) DO UPDATE SET
		completed    = EXCLUDED.completed,
		completed_at = CASE WHEN EXCLUDED.completed THEN now() END
	RETURNING user_id, week_id, completed, completed_at`

// SetProgress marks a week complete or incomplete for a user.
func (s *Store) SetProgress(ctx context.Context, userID, weekID string, completed bool) (*Progress, error) {
	uID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, userID)
	}
	wID, err := uuid.Parse(weekID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, weekID)
	}

	var p Progress
	err = s.db.QueryRow(ctx, setProgressSQL, uID, wID, completed).Scan(
		&p.UserID, &p.WeekID, &p.Completed, &p.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("setting progress: %w", err)
	}
	return &p, nil
}

const getProgressSQL = `
	SELECT p.user_id, p.week_id, p.completed, p.completed_at
	FROM progress p
	JOIN weekly_content w ON w.id = p.week_id
	WHERE p.user_id = $1 AND w.module_id = $2
	ORDER BY w.week`

// GetProgress returns a user's progress across one module's weeks.
// Weeks with no record are simply absent from the result.
func (s *Store) GetProgress(ctx context.Context, userID, moduleID string) ([]Progress, error) {
	uID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, userID)
	}
	mID, err := uuid.Parse(moduleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, moduleID)
	}

	rows, err := s.db.Query(ctx, getProgressSQL, uID, mID)
	if err != nil {
		return nil, fmt.Errorf("getting progress: %w", err)
	}
	defer rows.Close()

	var records []Progress
	for rows.Next() {
		var p Progress
		if err := rows.Scan(&p.UserID, &p.WeekID, &p.Completed, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning progress: %w", err)
		}
		records = append(records, p)
	}
	return records, rows.Err()
}
