package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/supertodo/internal/model"
)

// timeLayout is the on-disk timestamp format. All stored times are UTC, so
// equal instants always produce equal strings.
const timeLayout = time.RFC3339Nano

// queries implements Querier over either the pooled DB or an open
// transaction.
type queries struct {
	ext  sqlx.ExtContext
	inTx bool
}

// taskRow mirrors the tasks table.
type taskRow struct {
	ID               string         `db:"id"`
	Seq              int64          `db:"seq"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Status           string         `db:"status"`
	Priority         string         `db:"priority"`
	Deadline         string         `db:"deadline"`
	RecurringPattern string         `db:"recurring_pattern"`
	RecurringNextDue sql.NullString `db:"recurring_next_due"`
	Subtasks         string         `db:"subtasks"`
	CreatedAt        string         `db:"created_at"`
	UpdatedAt        string         `db:"updated_at"`
}

const taskColumns = `id, seq, title, description, status, priority, deadline,
	recurring_pattern, recurring_next_due, subtasks, created_at, updated_at`

// exec runs a write statement. Outside a transaction, busy errors are
// retried; inside one they surface to the caller.
func (q queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if q.inTx {
		return q.ext.ExecContext(ctx, query, args...)
	}
	var res sql.Result
	err := withRetry(ctx, func() error {
		var err error
		res, err = q.ext.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// CreateTask inserts task under a newly generated UUID and returns it.
func (q queries) CreateTask(ctx context.Context, task model.Task) (string, error) {
	if err := checkRange(task); err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}

	id := uuid.New().String()
	now := formatTime(time.Now())

	subtasks, err := marshalSubtasks(task.Subtasks)
	if err != nil {
		return "", err
	}

	_, err = q.exec(ctx, `
		INSERT INTO tasks (
			id, seq, title, description, status, priority, deadline,
			recurring_pattern, recurring_next_due, subtasks, created_at, updated_at
		) VALUES (
			?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM tasks), ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)`,
		id, task.Title, task.Description, string(task.Status), string(task.Priority),
		formatTime(task.Deadline),
		string(task.Recurring.Pattern), formatTimePtr(task.Recurring.NextDue),
		subtasks, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}
	return id, nil
}

// GetTask retrieves a single task by ID.
func (q queries) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var row taskRow
	err := sqlx.GetContext(ctx, q.ext, &row,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if err != nil {
		return nil, wrapDBErrorf(err, "getting task %s", id)
	}

	task, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ReplaceTask overwrites the stored task with id.
func (q queries) ReplaceTask(ctx context.Context, id string, task model.Task) (*model.Task, error) {
	if err := checkRange(task); err != nil {
		return nil, fmt.Errorf("replacing task %s: %w", id, err)
	}

	subtasks, err := marshalSubtasks(task.Subtasks)
	if err != nil {
		return nil, err
	}

	result, err := q.exec(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, status = ?, priority = ?, deadline = ?,
			recurring_pattern = ?, recurring_next_due = ?, subtasks = ?,
			updated_at = ?
		WHERE id = ?`,
		task.Title, task.Description, string(task.Status), string(task.Priority),
		formatTime(task.Deadline),
		string(task.Recurring.Pattern), formatTimePtr(task.Recurring.NextDue),
		subtasks, formatTime(time.Now()),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("replacing task %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("replacing task %s: %w", id, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("replacing task %s: %w", id, ErrNotFound)
	}

	return q.GetTask(ctx, id)
}

// DeleteTask removes a task by ID. Its successor provenance rows cascade.
func (q queries) DeleteTask(ctx context.Context, id string) error {
	result, err := q.exec(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("deleting task %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTasks retrieves every task in creation order.
func (q queries) ListTasks(ctx context.Context) ([]model.Task, error) {
	var rows []taskRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		"SELECT "+taskColumns+" FROM tasks ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		task, err := r.toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// toModel converts a scanned row into a model.Task.
func (r taskRow) toModel() (model.Task, error) {
	task := model.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      model.Status(r.Status),
		Priority:    model.Priority(r.Priority),
		Recurring:   model.Recurring{Pattern: model.Pattern(r.RecurringPattern)},
	}

	var err error
	if task.Deadline, err = parseTime(r.Deadline); err != nil {
		return model.Task{}, fmt.Errorf("parsing deadline of task %s: %w", r.ID, err)
	}
	if r.RecurringNextDue.Valid {
		nd, err := parseTime(r.RecurringNextDue.String)
		if err != nil {
			return model.Task{}, fmt.Errorf("parsing nextDue of task %s: %w", r.ID, err)
		}
		task.Recurring.NextDue = &nd
	}
	if task.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return model.Task{}, fmt.Errorf("parsing created_at of task %s: %w", r.ID, err)
	}
	if task.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return model.Task{}, fmt.Errorf("parsing updated_at of task %s: %w", r.ID, err)
	}

	task.Subtasks = []model.Subtask{}
	if r.Subtasks != "" {
		if err := json.Unmarshal([]byte(r.Subtasks), &task.Subtasks); err != nil {
			return model.Task{}, fmt.Errorf("unmarshaling subtasks of task %s: %w", r.ID, err)
		}
	}

	return task, nil
}

func marshalSubtasks(subtasks []model.Subtask) (string, error) {
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	b, err := json.Marshal(subtasks)
	if err != nil {
		return "", fmt.Errorf("marshaling subtasks: %w", err)
	}
	return string(b), nil
}

// checkRange rejects tasks whose timestamps formatTime cannot round-trip.
func checkRange(task model.Task) error {
	if task.Deadline.After(model.MaxTime) {
		return fmt.Errorf("deadline %s: %w", task.Deadline.Format(time.RFC3339), ErrOutOfRange)
	}
	if nd := task.Recurring.NextDue; nd != nil && nd.After(model.MaxTime) {
		return fmt.Errorf("nextDue %s: %w", nd.Format(time.RFC3339), ErrOutOfRange)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// wrapDBErrorf wraps a database error with formatted operation context.
// It converts sql.ErrNoRows to ErrNotFound.
func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	op := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueViolation reports whether err is a SQLite unique or primary key
// constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
