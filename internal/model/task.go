package model

import "time"

// Status is the lifecycle state of a task or subtask.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority is the user-assigned urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Pattern classifies how a completed task spawns its successor.
type Pattern string

const (
	PatternNone   Pattern = "none"
	PatternDaily  Pattern = "daily"
	PatternWeekly Pattern = "weekly"
	PatternCustom Pattern = "custom"
)

// IsValid reports whether p is one of the known recurrence patterns.
func (p Pattern) IsValid() bool {
	switch p {
	case PatternNone, PatternDaily, PatternWeekly, PatternCustom:
		return true
	}
	return false
}

// Interval returns the fixed spacing between occurrences. ok is false for
// patterns without one.
func (p Pattern) Interval() (d time.Duration, ok bool) {
	switch p {
	case PatternDaily:
		return 24 * time.Hour, true
	case PatternWeekly:
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

// MaxTime is the latest timestamp a task may carry. Later instants need a
// five-digit year, which RFC 3339 cannot represent.
var MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Recurring describes the repeat rule of a task.
type Recurring struct {
	// Pattern is the repeat cadence (use Pattern* constants).
	Pattern Pattern `json:"pattern"`

	// NextDue is when the successor falls due. Absent for PatternNone.
	NextDue *time.Time `json:"nextDue"`
}

// Subtask is a titled item embedded in and owned by exactly one Task.
type Subtask struct {
	Title  string `json:"title"`
	Status Status `json:"status"`
}

// Task is the primary to-do record.
type Task struct {
	// ID is the server-assigned identifier. It never changes after creation.
	ID string `json:"_id"`

	// Title is the human-readable summary. Never blank.
	Title string `json:"title"`

	// Description is the optional free-form body.
	Description string `json:"description"`

	// Status is the lifecycle state (use Status* constants).
	Status Status `json:"status"`

	// Priority is the urgency level (use Priority* constants).
	Priority Priority `json:"priority"`

	// Deadline is when the task falls due, always in UTC.
	Deadline time.Time `json:"deadline"`

	// Recurring holds the repeat rule.
	Recurring Recurring `json:"recurring"`

	// Subtasks keeps insertion order across reads and writes.
	Subtasks []Subtask `json:"subtasks"`

	// CreatedAt is set once by the store when the task is created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is refreshed by the store on every write.
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecurringInput is the wire form of Recurring before validation.
type RecurringInput struct {
	Pattern string  `json:"pattern"`
	NextDue *string `json:"nextDue"`
}

// SubtaskInput is the wire form of Subtask before sanitization.
type SubtaskInput struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

// TaskInput is the request payload for creating or replacing a task.
// Enum and timestamp fields are kept as raw strings so that every malformed
// field can be reported in a single response. Any "_id" in the body is ignored.
type TaskInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Priority    string         `json:"priority"`
	Deadline    string         `json:"deadline"`
	Recurring   RecurringInput `json:"recurring"`
	Subtasks    []SubtaskInput `json:"subtasks"`
}
