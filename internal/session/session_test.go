package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lecternhq/lectern/internal/session"
	"github.com/lecternhq/lectern/internal/testutil"
)

func TestNewStore_RequiresDB(t *testing.T) {
	if _, err := session.NewStore(nil); err == nil {
		t.Error("NewStore(nil) should fail")
	}
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := session.NewStore(tdb.Pool)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	t.Run("create and get", func(t *testing.T) {
		sess, err := store.Create(ctx, "Forward kinematics questions")
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if sess.Title != "Forward kinematics questions" {
			t.Errorf("title = %q", sess.Title)
		}

		got, err := store.Get(ctx, sess.ID.String())
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got.ID != sess.ID {
			t.Errorf("Get() id = %s, want %s", got.ID, sess.ID)
		}
	})

	t.Run("get missing session", func(t *testing.T) {
		_, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000")
		if !errors.Is(err, session.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("get invalid id", func(t *testing.T) {
		_, err := store.Get(ctx, "not-a-uuid")
		if !errors.Is(err, session.ErrInvalidID) {
			t.Errorf("error = %v, want ErrInvalidID", err)
		}
	})

	t.Run("message history in order", func(t *testing.T) {
		sess, err := store.Create(ctx, "history test")
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}

		turns := []struct{ role, content string }{
			{session.RoleUser, "What is a Jacobian?"},
			{session.RoleAssistant, "It maps joint velocities to end-effector velocities."},
			{session.RoleUser, "When is it singular?"},
		}
		for _, turn := range turns {
			if _, err := store.AppendMessage(ctx, sess.ID.String(), turn.role, turn.content); err != nil {
				t.Fatalf("AppendMessage() error: %v", err)
			}
		}

		history, err := store.History(ctx, sess.ID.String())
		if err != nil {
			t.Fatalf("History() error: %v", err)
		}
		if len(history) != len(turns) {
			t.Fatalf("got %d messages, want %d", len(history), len(turns))
		}
		for i, msg := range history {
			if msg.Role != turns[i].role || msg.Content != turns[i].content {
				t.Errorf("message %d = (%s, %q), want (%s, %q)",
					i, msg.Role, msg.Content, turns[i].role, turns[i].content)
			}
		}
	})

	t.Run("append to missing session", func(t *testing.T) {
		_, err := store.AppendMessage(ctx, "00000000-0000-0000-0000-000000000000", session.RoleUser, "hello")
		if !errors.Is(err, session.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("append bumps session activity", func(t *testing.T) {
		first, err := store.Create(ctx, "older")
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if _, err := store.Create(ctx, "newer"); err != nil {
			t.Fatalf("Create() error: %v", err)
		}

		// Touching the older session moves it back to the front.
		if _, err := store.AppendMessage(ctx, first.ID.String(), session.RoleUser, "still here"); err != nil {
			t.Fatalf("AppendMessage() error: %v", err)
		}

		sessions, err := store.List(ctx, 10)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(sessions) < 2 {
			t.Fatalf("got %d sessions", len(sessions))
		}
		if sessions[0].ID != first.ID {
			t.Errorf("most recent session = %s, want %s", sessions[0].ID, first.ID)
		}
	})

	t.Run("delete cascades to messages", func(t *testing.T) {
		sess, err := store.Create(ctx, "doomed")
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if _, err := store.AppendMessage(ctx, sess.ID.String(), session.RoleUser, "bye"); err != nil {
			t.Fatalf("AppendMessage() error: %v", err)
		}

		if err := store.Delete(ctx, sess.ID.String()); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if _, err := store.Get(ctx, sess.ID.String()); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound after delete", err)
		}
		if err := store.Delete(ctx, sess.ID.String()); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("second delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list respects limit", func(t *testing.T) {
		sessions, err := store.List(ctx, 1)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(sessions) != 1 {
			t.Errorf("got %d sessions, want 1", len(sessions))
		}
	})
}
