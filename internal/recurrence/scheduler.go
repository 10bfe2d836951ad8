package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/nhle/supertodo/internal/model"
	"github.com/nhle/supertodo/internal/store"
	"github.com/nhle/supertodo/internal/telemetry"
)

const scopeName = "github.com/nhle/supertodo/recurrence"

// Outcome describes what Schedule did for one completion.
type Outcome struct {
	// SuccessorID is the created or previously recorded successor.
	SuccessorID string

	// Duplicate is true when the completion already had a successor.
	Duplicate bool

	// Skipped holds the reason no successor could be generated.
	Skipped string
}

// Scheduler materializes successors of completed recurring tasks.
type Scheduler struct {
	logger   *slog.Logger
	outcomes metric.Int64Counter
}

// NewScheduler returns a Scheduler that logs to logger.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	var outcomes metric.Int64Counter = metricnoop.Int64Counter{}
	if c, err := telemetry.Meter(scopeName).Int64Counter("supertodo.recurrence.outcomes",
		metric.WithDescription("Recurrence generation results by outcome"),
	); err == nil {
		outcomes = c
	}
	return &Scheduler{logger: logger, outcomes: outcomes}
}

// Schedule generates the successor of source, which must be the stored
// record just after its completing write. q must be the transaction that
// wrote it, so the provenance check and the create commit or roll back as
// one unit. Callers serialize Schedule per source ID.
func (s *Scheduler) Schedule(ctx context.Context, q store.Querier, source model.Task) (Outcome, error) {
	nextDue, err := NextDue(source)
	if errors.Is(err, ErrNoRecurrence) {
		return Outcome{}, nil
	}
	var skipped *SkippedError
	if errors.As(err, &skipped) {
		s.logger.WarnContext(ctx, "recurrence skipped",
			"task_id", source.ID,
			"pattern", string(source.Recurring.Pattern),
			"reason", skipped.Reason,
		)
		s.record(ctx, "skipped", source.Recurring.Pattern)
		return Outcome{Skipped: skipped.Reason}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	key := store.SuccessorKey{SourceID: source.ID, SourceDeadline: source.Deadline}

	existing, found, err := q.FindSuccessor(ctx, key)
	if err != nil {
		return Outcome{}, err
	}
	if found {
		s.logger.InfoContext(ctx, "recurrence already generated",
			"task_id", source.ID,
			"successor_id", existing,
		)
		s.record(ctx, "duplicate", source.Recurring.Pattern)
		return Outcome{SuccessorID: existing, Duplicate: true}, nil
	}

	successorID, err := q.CreateTask(ctx, Successor(source, nextDue))
	if err != nil {
		return Outcome{}, fmt.Errorf("creating successor of task %s: %w", source.ID, err)
	}
	if err := q.RecordSuccessor(ctx, key, successorID); err != nil {
		return Outcome{}, err
	}

	s.logger.InfoContext(ctx, "recurrence successor created",
		"task_id", source.ID,
		"successor_id", successorID,
		"deadline", nextDue,
	)
	s.record(ctx, "created", source.Recurring.Pattern)
	return Outcome{SuccessorID: successorID}, nil
}

func (s *Scheduler) record(ctx context.Context, outcome string, pattern model.Pattern) {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("pattern", string(pattern)),
	))
}
