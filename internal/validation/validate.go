// Package validation checks task payloads against the domain rules before
// they reach storage. Everything here is pure: no I/O, no store access.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/supertodo/internal/model"
)

// FieldError is a single rule violation on one payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects every violation found in one payload.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid task: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the violations.
func (e *Error) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *Error) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Options toggles optional policies.
type Options struct {
	// RequireSubtasksCompleted rejects a completed task that still has
	// open subtasks.
	RequireSubtasksCompleted bool
}

// ParseTime accepts RFC 3339 timestamps, with or without fractional seconds,
// and normalizes them to UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Validate checks in against the domain rules and, when every rule holds,
// returns the typed task. subtasks must already be sanitized. The returned
// task has no ID and no timestamps. On failure the error is an *Error
// listing every violation.
func Validate(in model.TaskInput, subtasks []model.Subtask, opts Options) (model.Task, error) {
	verr := &Error{}

	if strings.TrimSpace(in.Title) == "" {
		verr.add("title", "must not be empty")
	}

	status := model.Status(in.Status)
	if !status.IsValid() {
		verr.add("status", "must be one of pending, in-progress, completed (got %q)", in.Status)
	}

	priority := model.Priority(in.Priority)
	if !priority.IsValid() {
		verr.add("priority", "must be one of low, medium, high (got %q)", in.Priority)
	}

	deadline, err := ParseTime(in.Deadline)
	if err != nil {
		verr.add("deadline", "must be an ISO-8601 timestamp (got %q)", in.Deadline)
	}

	pattern := model.Pattern(in.Recurring.Pattern)
	if in.Recurring.Pattern == "" && in.Recurring.NextDue == nil {
		// An absent recurring object means the task does not repeat.
		pattern = model.PatternNone
	}
	if !pattern.IsValid() {
		verr.add("recurring.pattern", "must be one of none, daily, weekly, custom (got %q)", in.Recurring.Pattern)
	}

	var nextDue *time.Time
	if in.Recurring.NextDue != nil && strings.TrimSpace(*in.Recurring.NextDue) != "" {
		nd, err := ParseTime(*in.Recurring.NextDue)
		switch {
		case err != nil:
			verr.add("recurring.nextDue", "must be an ISO-8601 timestamp (got %q)", *in.Recurring.NextDue)
		case pattern == model.PatternCustom && nd.After(model.MaxTime):
			verr.add("recurring.nextDue", "must not be after %s", model.MaxTime.Format(time.RFC3339))
		default:
			nextDue = &nd
		}
	}

	if !deadline.IsZero() {
		if deadline.After(model.MaxTime) {
			verr.add("deadline", "must not be after %s", model.MaxTime.Format(time.RFC3339))
		} else if interval, ok := pattern.Interval(); ok && deadline.Add(interval).After(model.MaxTime) {
			verr.add("deadline", "next %s occurrence would fall after %s", pattern, model.MaxTime.Format(time.RFC3339))
		}
	}

	pos := payloadPositions(in.Subtasks, len(subtasks))
	openSubtasks := 0
	for i, st := range subtasks {
		if strings.TrimSpace(st.Title) == "" {
			verr.add(fmt.Sprintf("subtasks[%d].title", pos[i]), "must not be empty")
		}
		if !st.Status.IsValid() {
			verr.add(fmt.Sprintf("subtasks[%d].status", pos[i]), "must be one of pending, in-progress, completed (got %q)", st.Status)
		}
		if st.Status != model.StatusCompleted {
			openSubtasks++
		}
	}
	if opts.RequireSubtasksCompleted && status == model.StatusCompleted && openSubtasks > 0 {
		verr.add("subtasks", "%d subtask(s) must be completed first", openSubtasks)
	}

	if len(verr.Fields) > 0 {
		return model.Task{}, verr
	}

	if subtasks == nil {
		subtasks = []model.Subtask{}
	}

	return model.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		Deadline:    deadline,
		Recurring:   model.Recurring{Pattern: pattern, NextDue: nextDue},
		Subtasks:    subtasks,
	}, nil
}

// payloadPositions maps each of the n sanitized subtasks back to its index
// in the submitted array, so field errors name the entry the caller sent.
// When the subtasks did not come from raw, indexes are used as they are.
func payloadPositions(raw []model.SubtaskInput, n int) []int {
	pos := make([]int, 0, n)
	for i, st := range raw {
		if strings.TrimSpace(st.Title) != "" {
			pos = append(pos, i)
		}
	}
	if len(pos) == n {
		return pos
	}
	pos = pos[:0]
	for i := 0; i < n; i++ {
		pos = append(pos, i)
	}
	return pos
}
