// Package recurrence derives the next occurrence of a completed recurring
// task and materializes it exactly once per completion.
package recurrence

import (
	"errors"
	"time"

	"github.com/nhle/supertodo/internal/model"
)

// ErrNoRecurrence is returned by NextDue for tasks with PatternNone.
var ErrNoRecurrence = errors.New("task does not recur")

// SkippedError reports a recurring task whose successor cannot be generated.
// It never blocks the completion that triggered it.
type SkippedError struct {
	Reason string
}

func (e *SkippedError) Error() string {
	return "recurrence skipped: " + e.Reason
}

// IsCompletion reports whether moving from the stored status prev to next
// completes the task. Re-saving an already completed task is not a
// completion.
func IsCompletion(prev, next model.Status) bool {
	return prev != model.StatusCompleted && next == model.StatusCompleted
}

// derive returns the due time that follows deadline under a fixed-interval
// pattern. ok is false for patterns without a fixed interval.
func derive(pattern model.Pattern, deadline time.Time) (time.Time, bool) {
	interval, ok := pattern.Interval()
	if !ok {
		return time.Time{}, false
	}
	return deadline.Add(interval), true
}

// Normalize rewrites task.Recurring.NextDue so it agrees with the deadline
// and pattern: derived for daily and weekly, cleared for none, and left as
// supplied for custom.
func Normalize(task *model.Task) {
	switch task.Recurring.Pattern {
	case model.PatternDaily, model.PatternWeekly:
		nd, _ := derive(task.Recurring.Pattern, task.Deadline)
		task.Recurring.NextDue = &nd
	case model.PatternNone:
		task.Recurring.NextDue = nil
	}
}

// NextDue computes when the successor of task falls due.
func NextDue(task model.Task) (time.Time, error) {
	switch task.Recurring.Pattern {
	case model.PatternDaily, model.PatternWeekly:
		nd, _ := derive(task.Recurring.Pattern, task.Deadline)
		// The successor carries its own derived nextDue, which must still
		// be representable.
		if after, _ := derive(task.Recurring.Pattern, nd); after.After(model.MaxTime) {
			return time.Time{}, &SkippedError{Reason: "next occurrence is past the supported date range"}
		}
		return nd, nil
	case model.PatternCustom:
		if task.Recurring.NextDue == nil {
			return time.Time{}, &SkippedError{Reason: "custom pattern requires nextDue"}
		}
		return task.Recurring.NextDue.UTC(), nil
	}
	return time.Time{}, ErrNoRecurrence
}

// Successor builds the next occurrence of source, due at nextDue. Subtask
// completion does not carry forward. The result has no ID.
func Successor(source model.Task, nextDue time.Time) model.Task {
	subtasks := make([]model.Subtask, len(source.Subtasks))
	for i, st := range source.Subtasks {
		subtasks[i] = model.Subtask{Title: st.Title, Status: model.StatusPending}
	}

	next := model.Task{
		Title:       source.Title,
		Description: source.Description,
		Status:      model.StatusPending,
		Priority:    source.Priority,
		Deadline:    nextDue,
		Recurring:   model.Recurring{Pattern: source.Recurring.Pattern},
		Subtasks:    subtasks,
	}
	Normalize(&next)
	return next
}
