package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/supertodo/internal/model"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested task does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint violation.
	ErrConflict = errors.New("conflict")

	// ErrOutOfRange indicates a timestamp past model.MaxTime, which could
	// not be read back once stored.
	ErrOutOfRange = errors.New("timestamp out of range")
)

// SuccessorKey identifies one completion of a recurring task: the source
// task and the deadline it had when it was completed. At most one successor
// is ever recorded per key.
type SuccessorKey struct {
	SourceID       string
	SourceDeadline time.Time
}

// Querier is the set of task operations available both on the store and
// inside a transaction.
type Querier interface {
	// CreateTask assigns a fresh ID, persists task and returns the ID.
	CreateTask(ctx context.Context, task model.Task) (string, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// ReplaceTask overwrites every mutable field of the stored task. The
	// stored ID and CreatedAt are kept whatever task carries.
	ReplaceTask(ctx context.Context, id string, task model.Task) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
	// ListTasks returns every task in creation order.
	ListTasks(ctx context.Context) ([]model.Task, error)

	FindSuccessor(ctx context.Context, key SuccessorKey) (string, bool, error)
	// RecordSuccessor fails with ErrConflict when key already has one.
	RecordSuccessor(ctx context.Context, key SuccessorKey, successorID string) error
}

// Store defines the persistence interface for tasks and their recurrence
// provenance.
type Store interface {
	Querier

	// RunInTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(q Querier) error) error

	Close() error
}
