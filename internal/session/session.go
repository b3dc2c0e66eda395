// Package session persists chat sessions and their message history.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID indicates the session ID is not a valid UUID.
	ErrInvalidID = errors.New("invalid session id")
)

// Roles recorded for messages. The database enforces the same set.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is a chat conversation.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn in a session.
type Message struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides session persistence backed by PostgreSQL.
type Store struct {
	db Querier
}

// Querier is the subset of pgx operations the store needs.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewStore creates a session store.
func NewStore(db Querier) (*Store, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &Store{db: db}, nil
}

const createSessionSQL = `
	INSERT INTO sessions (title)
	VALUES ($1)
	RETURNING id, title, created_at, updated_at`

// Create starts a new session with the given title.
func (s *Store) Create(ctx context.Context, title string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, createSessionSQL, title).Scan(
		&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &sess, nil
}

const getSessionSQL = `
	SELECT id, title, created_at, updated_at
	FROM sessions
	WHERE id = $1`

// Get returns a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	var sess Session
	err = s.db.QueryRow(ctx, getSessionSQL, sessionID).Scan(
		&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &sess, nil
}

const listSessionsSQL = `
	SELECT id, title, created_at, updated_at
	FROM sessions
	ORDER BY updated_at DESC
	LIMIT $1`

// List returns the most recently active sessions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, listSessionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

const appendMessageSQL = `
	WITH touched AS (
		UPDATE sessions SET updated_at = now() WHERE id = $1
		RETURNING id
	)
	INSERT INTO messages (session_id, role, content)
	SELECT id, $2, $3 FROM touched
	RETURNING id, session_id, role, content, created_at`

// AppendMessage adds a message to a session and bumps its updated_at.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string) (*Message, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, sessionID)
	}

	var msg Message
	err = s.db.QueryRow(ctx, appendMessageSQL, id, role, content).Scan(
		&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}
	return &msg, nil
}

const deleteSessionSQL = `DELETE FROM sessions WHERE id = $1`

// Delete removes a session and, via cascade, its messages.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, sessionID)
	}

	tag, err := s.db.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const historySQL = `
	SELECT id, session_id, role, content, created_at
	FROM messages
	WHERE session_id = $1
	ORDER BY created_at, id`

// History returns all messages in a session, oldest first.
func (s *Store) History(ctx context.Context, sessionID string) ([]Message, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, sessionID)
	}

	rows, err := s.db.Query(ctx, historySQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
