// Package service composes validation, storage and recurrence into the task
// operations exposed at the API boundary.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nhle/supertodo/internal/model"
	"github.com/nhle/supertodo/internal/recurrence"
	"github.com/nhle/supertodo/internal/store"
	"github.com/nhle/supertodo/internal/telemetry"
	"github.com/nhle/supertodo/internal/validation"
)

const scopeName = "github.com/nhle/supertodo/service"

// ErrNotFound is returned when the requested task does not exist.
var ErrNotFound = store.ErrNotFound

// Options holds policy switches for the service.
type Options struct {
	// RequireSubtasksCompleted rejects completing a task with open subtasks.
	RequireSubtasksCompleted bool
}

// OptionsFromConfig maps the tasks section of the app config.
func OptionsFromConfig(cfg model.TasksConfig) Options {
	return Options{RequireSubtasksCompleted: cfg.RequireSubtasksCompleted}
}

// Service is the task orchestrator. It holds no request state; the only
// shared resource is the store.
type Service struct {
	store     store.Store
	scheduler *recurrence.Scheduler
	logger    *slog.Logger
	opts      Options
	locks     *keyedMutex
	tracer    trace.Tracer
}

// New creates a Service backed by st.
func New(st store.Store, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		scheduler: recurrence.NewScheduler(logger),
		logger:    logger,
		opts:      opts,
		locks:     newKeyedMutex(),
		tracer:    telemetry.Tracer(scopeName),
	}
}

// prepare sanitizes, validates and normalizes a payload into a task ready
// for storage. It touches nothing outside its arguments.
func (s *Service) prepare(in model.TaskInput) (model.Task, error) {
	subtasks := validation.SanitizeSubtasks(in.Subtasks)
	task, err := validation.Validate(in, subtasks, validation.Options{
		RequireSubtasksCompleted: s.opts.RequireSubtasksCompleted,
	})
	if err != nil {
		return model.Task{}, err
	}
	recurrence.Normalize(&task)
	return task, nil
}

// AddTask validates in and stores it as a new task.
func (s *Service) AddTask(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	ctx, span := s.tracer.Start(ctx, "service.AddTask")
	defer span.End()

	task, err := s.prepare(in)
	if err != nil {
		return nil, s.fail(span, err)
	}

	id, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("task.id", id))

	created, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.DebugContext(ctx, "task created", "task_id", id)
	return created, nil
}

// EditTask replaces the task with id by in. When the write moves the task
// into completed, the successor of a recurring task is generated in the
// same transaction. A skipped recurrence does not fail the edit.
func (s *Service) EditTask(ctx context.Context, id string, in model.TaskInput) (*model.Task, error) {
	ctx, span := s.tracer.Start(ctx, "service.EditTask",
		trace.WithAttributes(attribute.String("task.id", id)))
	defer span.End()

	task, err := s.prepare(in)
	if err != nil {
		return nil, s.fail(span, err)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var updated *model.Task
	err = s.store.RunInTx(ctx, func(q store.Querier) error {
		prev, err := q.GetTask(ctx, id)
		if err != nil {
			return err
		}

		updated, err = q.ReplaceTask(ctx, id, task)
		if err != nil {
			return err
		}

		if !recurrence.IsCompletion(prev.Status, updated.Status) {
			return nil
		}

		outcome, err := s.scheduler.Schedule(ctx, q, *updated)
		if err != nil {
			return fmt.Errorf("scheduling recurrence of task %s: %w", id, err)
		}
		span.SetAttributes(
			attribute.String("recurrence.successor_id", outcome.SuccessorID),
			attribute.Bool("recurrence.duplicate", outcome.Duplicate),
			attribute.String("recurrence.skipped", outcome.Skipped),
		)
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.DebugContext(ctx, "task replaced", "task_id", id, "status", string(updated.Status))
	return updated, nil
}

// DeleteTask permanently removes the task with id.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteTask",
		trace.WithAttributes(attribute.String("task.id", id)))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.DeleteTask(ctx, id); err != nil {
		return s.fail(span, err)
	}

	s.logger.DebugContext(ctx, "task deleted", "task_id", id)
	return nil
}

// GetTask returns the stored task with id.
func (s *Service) GetTask(ctx context.Context, id string) (*model.Task, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetTask",
		trace.WithAttributes(attribute.String("task.id", id)))
	defer span.End()

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return task, nil
}

// ListTasks returns every task in creation order.
func (s *Service) ListTasks(ctx context.Context) ([]model.Task, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListTasks")
	defer span.End()

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return tasks, nil
}

// fail marks span as failed for infrastructure errors and passes err through.
// Validation and not-found outcomes are expected and leave the span ok.
func (s *Service) fail(span trace.Span, err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) || errors.Is(err, ErrNotFound) {
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
