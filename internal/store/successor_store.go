package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// FindSuccessor looks up the successor already generated for key.
func (q queries) FindSuccessor(ctx context.Context, key SuccessorKey) (string, bool, error) {
	var successorID string
	err := sqlx.GetContext(ctx, q.ext, &successorID,
		"SELECT successor_id FROM successors WHERE source_id = ? AND source_deadline = ?",
		key.SourceID, formatTime(key.SourceDeadline),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("finding successor of task %s: %w", key.SourceID, err)
	}
	return successorID, true, nil
}

// RecordSuccessor stores the provenance of a generated successor.
func (q queries) RecordSuccessor(ctx context.Context, key SuccessorKey, successorID string) error {
	_, err := q.exec(ctx, `
		INSERT INTO successors (source_id, source_deadline, successor_id, created_at)
		VALUES (?, ?, ?, ?)`,
		key.SourceID, formatTime(key.SourceDeadline), successorID, formatTime(time.Now()),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("recording successor of task %s: %w", key.SourceID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("recording successor of task %s: %w", key.SourceID, err)
	}
	return nil
}
