package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/supertodo/internal/model"
	"github.com/nhle/supertodo/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// MustTime parses an RFC 3339 timestamp or fails the test.
func MustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatalf("parsing time %q: %v", s, err)
	}
	return ts.UTC()
}

// Input returns a valid pending, non-recurring task payload.
func Input(title string) model.TaskInput {
	return model.TaskInput{
		Title:       title,
		Description: "",
		Status:      string(model.StatusPending),
		Priority:    string(model.PriorityMedium),
		Deadline:    "2024-01-01T09:00:00Z",
		Recurring:   model.RecurringInput{Pattern: string(model.PatternNone)},
	}
}

// SeedTask stores task directly, bypassing validation, and returns it as read back.
func SeedTask(t *testing.T, s store.Store, task model.Task) *model.Task {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateTask(ctx, task)
	if err != nil {
		t.Fatalf("seeding task: %v", err)
	}
	got, err := s.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("reading seeded task: %v", err)
	}
	return got
}
