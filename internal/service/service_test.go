package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/supertodo/internal/model"
	"github.com/nhle/supertodo/internal/validation"
	"github.com/nhle/supertodo/tests/testutil"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	return New(testutil.NewTestStore(t), nil, opts)
}

func weeklyInput() model.TaskInput {
	in := testutil.Input("Weekly review")
	in.Recurring.Pattern = string(model.PatternWeekly)
	in.Subtasks = []model.SubtaskInput{
		{Title: "inbox zero", Status: "completed"},
		{Title: "plan next week"},
	}
	return in
}

func complete(in model.TaskInput) model.TaskInput {
	in.Status = string(model.StatusCompleted)
	return in
}

func TestAddTask_RoundTrip(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	in := testutil.Input("Buy milk")
	in.Description = "2 liters"
	in.Priority = "high"
	in.Subtasks = []model.SubtaskInput{{Title: "check fridge", Status: "in-progress"}}

	created, err := svc.AddTask(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := svc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, "2 liters", got.Description)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.True(t, got.Deadline.Equal(testutil.MustTime(t, in.Deadline)))
	assert.Equal(t, model.PatternNone, got.Recurring.Pattern)
	assert.Nil(t, got.Recurring.NextDue)
	assert.Equal(t, validation.SanitizeSubtasks(in.Subtasks), got.Subtasks)
}

func TestAddTask_Sanitizes(t *testing.T) {
	svc := newTestService(t, Options{})

	in := testutil.Input("with subtasks")
	in.Subtasks = []model.SubtaskInput{{Title: ""}, {Title: "x"}}

	created, err := svc.AddTask(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []model.Subtask{{Title: "x", Status: model.StatusPending}}, created.Subtasks)
}

func TestAddTask_DerivesNextDue(t *testing.T) {
	svc := newTestService(t, Options{})

	in := weeklyInput()
	bogus := "2030-01-01T00:00:00Z"
	in.Recurring.NextDue = &bogus

	created, err := svc.AddTask(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, created.Recurring.NextDue)
	assert.True(t, created.Recurring.NextDue.Equal(testutil.MustTime(t, "2024-01-08T09:00:00Z")))
}

func TestAddTask_ValidationHasNoSideEffect(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.AddTask(ctx, testutil.Input("existing"))
	require.NoError(t, err)
	before, err := svc.ListTasks(ctx)
	require.NoError(t, err)

	bad := testutil.Input("")
	bad.Priority = "urgent"
	_, err = svc.AddTask(ctx, bad)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("title"))
	assert.True(t, verr.Has("priority"))

	after, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAddTask_RejectsSuccessorPastYear9999(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	in := weeklyInput()
	in.Deadline = "9999-12-31T12:00:00Z"
	_, err := svc.AddTask(ctx, in)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("deadline"))

	_, err = svc.AddTask(ctx, testutil.Input("ordinary"))
	require.NoError(t, err)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEditTask_CompletionNearYear9999SkipsSuccessor(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	in := testutil.Input("End of calendar")
	in.Recurring.Pattern = "daily"
	in.Deadline = "9999-12-30T12:00:00Z"
	created, err := svc.AddTask(ctx, in)
	require.NoError(t, err)

	updated, err := svc.EditTask(ctx, created.ID, complete(in))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEditTask_ReplacesFullRecord(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, weeklyInput())
	require.NoError(t, err)

	in := testutil.Input("Renamed")
	in.Status = "in-progress"
	updated, err := svc.EditTask(ctx, created.ID, in)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, model.PatternNone, updated.Recurring.Pattern)
	assert.Nil(t, updated.Recurring.NextDue)
	assert.Empty(t, updated.Subtasks)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestEditTask_NotFound(t *testing.T) {
	svc := newTestService(t, Options{})

	_, err := svc.EditTask(context.Background(), "nonexistent", testutil.Input("x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditTask_InvalidPayloadLeavesTaskUnchanged(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, testutil.Input("keep me"))
	require.NoError(t, err)

	bad := testutil.Input("  ")
	_, err = svc.EditTask(ctx, created.ID, bad)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))

	got, err := svc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestEditTask_WeeklyCompletionCreatesSuccessor(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, weeklyInput())
	require.NoError(t, err)

	updated, err := svc.EditTask(ctx, created.ID, complete(weeklyInput()))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, model.StatusCompleted, list[0].Status)

	succ := list[1]
	assert.NotEqual(t, created.ID, succ.ID)
	assert.Equal(t, "Weekly review", succ.Title)
	assert.Equal(t, created.Description, succ.Description)
	assert.Equal(t, created.Priority, succ.Priority)
	assert.Equal(t, model.StatusPending, succ.Status)
	assert.True(t, succ.Deadline.Equal(testutil.MustTime(t, "2024-01-08T09:00:00Z")))
	assert.Equal(t, model.PatternWeekly, succ.Recurring.Pattern)
	require.NotNil(t, succ.Recurring.NextDue)
	assert.True(t, succ.Recurring.NextDue.Equal(testutil.MustTime(t, "2024-01-15T09:00:00Z")))
	assert.Equal(t, []model.Subtask{
		{Title: "inbox zero", Status: model.StatusPending},
		{Title: "plan next week", Status: model.StatusPending},
	}, succ.Subtasks)
}

func TestEditTask_DailyCompletion(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	in := testutil.Input("Stretch")
	in.Recurring.Pattern = "daily"
	created, err := svc.AddTask(ctx, in)
	require.NoError(t, err)

	in.Status = "completed"
	_, err = svc.EditTask(ctx, created.ID, in)
	require.NoError(t, err)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[1].Deadline.Equal(testutil.MustTime(t, "2024-01-02T09:00:00Z")))
}

func TestEditTask_RetriedCompletionIsIdempotent(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, weeklyInput())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svc.EditTask(ctx, created.ID, complete(weeklyInput()))
		require.NoError(t, err)
	}

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestEditTask_ReopenAndRecompleteDoesNotDuplicate(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, weeklyInput())
	require.NoError(t, err)

	_, err = svc.EditTask(ctx, created.ID, complete(weeklyInput()))
	require.NoError(t, err)
	_, err = svc.EditTask(ctx, created.ID, weeklyInput())
	require.NoError(t, err)
	_, err = svc.EditTask(ctx, created.ID, complete(weeklyInput()))
	require.NoError(t, err)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestEditTask_RecompleteWithNewDeadlineCreatesAnother(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, weeklyInput())
	require.NoError(t, err)

	_, err = svc.EditTask(ctx, created.ID, complete(weeklyInput()))
	require.NoError(t, err)

	moved := weeklyInput()
	moved.Deadline = "2024-02-01T09:00:00Z"
	_, err = svc.EditTask(ctx, created.ID, moved)
	require.NoError(t, err)
	_, err = svc.EditTask(ctx, created.ID, complete(moved))
	require.NoError(t, err)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[2].Deadline.Equal(testutil.MustTime(t, "2024-02-08T09:00:00Z")))
}

func TestEditTask_CreatingCompletedDoesNotRecur(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, complete(weeklyInput()))
	require.NoError(t, err)

	_, err = svc.EditTask(ctx, created.ID, complete(weeklyInput()))
	require.NoError(t, err)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEditTask_CustomWithoutNextDueStillCompletes(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	in := testutil.Input("Dentist")
	in.Recurring.Pattern = "custom"
	created, err := svc.AddTask(ctx, in)
	require.NoError(t, err)

	updated, err := svc.EditTask(ctx, created.ID, complete(in))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEditTask_CustomWithNextDue(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	in := testutil.Input("Dentist")
	in.Recurring.Pattern = "custom"
	nd := "2024-07-01T08:00:00Z"
	in.Recurring.NextDue = &nd
	created, err := svc.AddTask(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, created.Recurring.NextDue)

	_, err = svc.EditTask(ctx, created.ID, complete(in))
	require.NoError(t, err)

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[1].Deadline.Equal(testutil.MustTime(t, nd)))
	assert.Equal(t, model.PatternCustom, list[1].Recurring.Pattern)
	assert.Nil(t, list[1].Recurring.NextDue)
}

func TestEditTask_RequireSubtasksCompleted(t *testing.T) {
	svc := newTestService(t, Options{RequireSubtasksCompleted: true})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, weeklyInput())
	require.NoError(t, err)

	_, err = svc.EditTask(ctx, created.ID, complete(weeklyInput()))
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("subtasks"))

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusPending, list[0].Status)
}

func TestEditTask_ConcurrentCompletionsCreateOneSuccessor(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, weeklyInput())
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.EditTask(ctx, created.ID, complete(weeklyInput()))
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 0, svc.locks.size())
}

func TestEditTask_DifferentIDsRunIndependently(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		created, err := svc.AddTask(ctx, weeklyInput())
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.EditTask(ctx, id, complete(weeklyInput()))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func TestDeleteTask(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, testutil.Input("temp"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(ctx, created.ID))

	_, err = svc.GetTask(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTask_UnknownID(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.AddTask(ctx, testutil.Input("survivor"))
	require.NoError(t, err)
	before, err := svc.ListTasks(ctx)
	require.NoError(t, err)

	err = svc.DeleteTask(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	after, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeleteTask_SuccessorSurvivesSource(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.AddTask(ctx, weeklyInput())
	require.NoError(t, err)
	_, err = svc.EditTask(ctx, created.ID, complete(weeklyInput()))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(ctx, created.ID))

	list, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusPending, list[0].Status)
}

func TestKeyedMutex_Serializes(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")

	acquired := make(chan struct{})
	go func() {
		u := k.Lock("a")
		close(acquired)
		u()
	}()

	// A different key is not blocked.
	k.Lock("b")()

	select {
	case <-acquired:
		t.Fatal("second Lock on the same key acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
	assert.Equal(t, 0, k.size())
}
