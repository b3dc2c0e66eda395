package course_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lecternhq/lectern/internal/course"
	"github.com/lecternhq/lectern/internal/testutil"
)

func TestNewStore_RequiresDB(t *testing.T) {
	if _, err := course.NewStore(nil); err == nil {
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

	store, err := course.NewStore(tdb.Pool)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	mod, err := store.UpsertModule(ctx, "kinematics", "Kinematics", "Frames and transforms", 1)
	if err != nil {
		t.Fatalf("UpsertModule() error: %v", err)
	}

	t.Run("module upsert is idempotent on slug", func(t *testing.T) {
		updated, err := store.UpsertModule(ctx, "kinematics", "Kinematics II", "Updated", 1)
		if err != nil {
			t.Fatalf("UpsertModule() error: %v", err)
		}
		if updated.ID != mod.ID {
			t.Errorf("upsert created a new module: %s != %s", updated.ID, mod.ID)
		}
		if updated.Title != "Kinematics II" {
			t.Errorf("title = %q", updated.Title)
		}
	})

	t.Run("modules are listed in position order", func(t *testing.T) {
		if _, err := store.UpsertModule(ctx, "dynamics", "Dynamics", "", 2); err != nil {
			t.Fatalf("UpsertModule() error: %v", err)
		}
		if _, err := store.UpsertModule(ctx, "intro", "Introduction", "", 0); err != nil {
			t.Fatalf("UpsertModule() error: %v", err)
		}

		modules, err := store.ListModules(ctx)
		if err != nil {
			t.Fatalf("ListModules() error: %v", err)
		}
		if len(modules) != 3 {
			t.Fatalf("got %d modules, want 3", len(modules))
		}
		if modules[0].Slug != "intro" || modules[2].Slug != "dynamics" {
			t.Errorf("order = %q, %q, %q", modules[0].Slug, modules[1].Slug, modules[2].Slug)
		}
	})

	t.Run("get module by slug", func(t *testing.T) {
		got, err := store.GetModule(ctx, "kinematics")
		if err != nil {
			t.Fatalf("GetModule() error: %v", err)
		}
		if got.ID != mod.ID {
			t.Errorf("id = %s, want %s", got.ID, mod.ID)
		}

		if _, err := store.GetModule(ctx, "no-such-module"); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	week1, err := store.UpsertWeek(ctx, mod.ID.String(), 1, "Rotation matrices", "body text", "https://example.org/week-1")
	if err != nil {
		t.Fatalf("UpsertWeek() error: %v", err)
	}

	t.Run("week upsert is idempotent on module and week number", func(t *testing.T) {
		updated, err := store.UpsertWeek(ctx, mod.ID.String(), 1, "Rotations", "new body", "")
		if err != nil {
			t.Fatalf("UpsertWeek() error: %v", err)
		}
		if updated.ID != week1.ID {
			t.Errorf("upsert created a new week: %s != %s", updated.ID, week1.ID)
		}
		if updated.Body != "new body" {
			t.Errorf("body = %q", updated.Body)
		}
	})

	t.Run("weeks are listed in week order", func(t *testing.T) {
		if _, err := store.UpsertWeek(ctx, mod.ID.String(), 3, "Inverse kinematics", "", ""); err != nil {
			t.Fatalf("UpsertWeek() error: %v", err)
		}
		if _, err := store.UpsertWeek(ctx, mod.ID.String(), 2, "Homogeneous transforms", "", ""); err != nil {
			t.Fatalf("UpsertWeek() error: %v", err)
		}

		weeks, err := store.ListWeeks(ctx, mod.ID.String())
		if err != nil {
			t.Fatalf("ListWeeks() error: %v", err)
		}
		if len(weeks) != 3 {
			t.Fatalf("got %d weeks, want 3", len(weeks))
		}
		for i, w := range weeks {
			if w.Week != i+1 {
				t.Errorf("weeks[%d].Week = %d, want %d", i, w.Week, i+1)
			}
		}
	})

	t.Run("all weeks are listed in course order", func(t *testing.T) {
		intro, err := store.GetModule(ctx, "intro")
		if err != nil {
			t.Fatalf("GetModule() error: %v", err)
		}
		if _, err := store.UpsertWeek(ctx, intro.ID.String(), 1, "Welcome", "", ""); err != nil {
			t.Fatalf("UpsertWeek() error: %v", err)
		}

		weeks, err := store.ListAllWeeks(ctx)
		if err != nil {
			t.Fatalf("ListAllWeeks() error: %v", err)
		}
		if len(weeks) != 4 {
			t.Fatalf("got %d weeks, want 4", len(weeks))
		}
		// intro sits at position 0, so its week comes first.
		if weeks[0].ModuleID != intro.ID {
			t.Errorf("first week belongs to %s, want intro module %s", weeks[0].ModuleID, intro.ID)
		}
	})

	t.Run("get week validates id", func(t *testing.T) {
		if _, err := store.GetWeek(ctx, "nope"); !errors.Is(err, course.ErrInvalidID) {
			t.Errorf("error = %v, want ErrInvalidID", err)
		}
		if _, err := store.GetWeek(ctx, uuid.NewString()); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("exercises and submissions", func(t *testing.T) {
		ex, err := store.UpsertExercise(ctx, week1.ID.String(), "DH table", "Fill in the DH table for a 2R arm.", 0)
		if err != nil {
			t.Fatalf("UpsertExercise() error: %v", err)
		}
		if _, err := store.UpsertExercise(ctx, week1.ID.String(), "Frame sketch", "Sketch the frames.", 1); err != nil {
			t.Fatalf("UpsertExercise() error: %v", err)
		}

		exercises, err := store.ListExercises(ctx, week1.ID.String())
		if err != nil {
			t.Fatalf("ListExercises() error: %v", err)
		}
		if len(exercises) != 2 {
			t.Fatalf("got %d exercises, want 2", len(exercises))
		}
		if exercises[0].ID != ex.ID {
			t.Errorf("first exercise = %s, want %s", exercises[0].ID, ex.ID)
		}

		t.Run("exercise upsert is idempotent on week and position", func(t *testing.T) {
			updated, err := store.UpsertExercise(ctx, week1.ID.String(), "DH table", "Revised prompt.", 0)
			if err != nil {
				t.Fatalf("UpsertExercise() error: %v", err)
			}
			if updated.ID != ex.ID {
				t.Errorf("upsert created a new exercise: %s != %s", updated.ID, ex.ID)
			}
			if updated.Prompt != "Revised prompt." {
				t.Errorf("prompt = %q", updated.Prompt)
			}
		})

		t.Run("get exercise by id", func(t *testing.T) {
			got, err := store.GetExercise(ctx, ex.ID.String())
			if err != nil {
				t.Fatalf("GetExercise() error: %v", err)
			}
			if got.ID != ex.ID || got.Title != "DH table" {
				t.Errorf("exercise = %+v", got)
			}

			if _, err := store.GetExercise(ctx, uuid.NewString()); !errors.Is(err, course.ErrNotFound) {
				t.Errorf("error = %v, want ErrNotFound", err)
			}
			if _, err := store.GetExercise(ctx, "nope"); !errors.Is(err, course.ErrInvalidID) {
				t.Errorf("error = %v, want ErrInvalidID", err)
			}
		})

		t.Run("find exercises by filter", func(t *testing.T) {
			byModule, err := store.FindExercises(ctx, course.ExerciseFilter{ModuleID: mod.ID.String()})
			if err != nil {
				t.Fatalf("FindExercises(module) error: %v", err)
			}
			if len(byModule) != 2 {
				t.Fatalf("got %d exercises for module, want 2", len(byModule))
			}

			byWeek, err := store.FindExercises(ctx, course.ExerciseFilter{WeekID: week1.ID.String()})
			if err != nil {
				t.Fatalf("FindExercises(week) error: %v", err)
			}
			if len(byWeek) != 2 {
				t.Fatalf("got %d exercises for week, want 2", len(byWeek))
			}

			all, err := store.FindExercises(ctx, course.ExerciseFilter{})
			if err != nil {
				t.Fatalf("FindExercises() error: %v", err)
			}
			if len(all) != 2 {
				t.Fatalf("got %d exercises unfiltered, want 2", len(all))
			}
			if all[0].Position != 0 || all[1].Position != 1 {
				t.Errorf("order = %d, %d", all[0].Position, all[1].Position)
			}

			otherMod, err := store.GetModule(ctx, "dynamics")
			if err != nil {
				t.Fatalf("GetModule() error: %v", err)
			}
			none, err := store.FindExercises(ctx, course.ExerciseFilter{ModuleID: otherMod.ID.String()})
			if err != nil {
				t.Fatalf("FindExercises(other module) error: %v", err)
			}
			if len(none) != 0 {
				t.Errorf("got %d exercises for empty module, want 0", len(none))
			}
		})

		userID := uuid.NewString()
		sub, err := store.SubmitAnswer(ctx, ex.ID.String(), userID, "a1=0, alpha1=0 ...")
		if err != nil {
			t.Fatalf("SubmitAnswer() error: %v", err)
		}
		if sub.Answer == "" {
			t.Error("submission answer is empty")
		}

		subs, err := store.ListSubmissions(ctx, ex.ID.String(), userID)
		if err != nil {
			t.Fatalf("ListSubmissions() error: %v", err)
		}
		if len(subs) != 1 {
			t.Fatalf("got %d submissions, want 1", len(subs))
		}
	})

	t.Run("progress set and get", func(t *testing.T) {
		userID := uuid.NewString()

		p, err := store.SetProgress(ctx, userID, week1.ID.String(), true)
		if err != nil {
			t.Fatalf("SetProgress() error: %v", err)
		}
		if !p.Completed || p.CompletedAt == nil {
			t.Errorf("progress = %+v, want completed with timestamp", p)
		}

		// Un-completing clears the timestamp.
		p, err = store.SetProgress(ctx, userID, week1.ID.String(), false)
		if err != nil {
			t.Fatalf("SetProgress() error: %v", err)
		}
		if p.Completed || p.CompletedAt != nil {
			t.Errorf("progress = %+v, want not completed", p)
		}

		if _, err := store.SetProgress(ctx, userID, week1.ID.String(), true); err != nil {
			t.Fatalf("SetProgress() error: %v", err)
		}

		records, err := store.GetProgress(ctx, userID, mod.ID.String())
		if err != nil {
			t.Fatalf("GetProgress() error: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("got %d progress records, want 1", len(records))
		}
		if records[0].WeekID != week1.ID {
			t.Errorf("week = %s, want %s", records[0].WeekID, week1.ID)
		}
	})
}
