// Package api exposes the task service over HTTP at /api/tasks.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nhle/supertodo/internal/httpmw"
	"github.com/nhle/supertodo/internal/model"
	"github.com/nhle/supertodo/internal/service"
	"github.com/nhle/supertodo/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// TaskService is the subset of service.Service the handlers call.
type TaskService interface {
	AddTask(ctx context.Context, in model.TaskInput) (*model.Task, error)
	EditTask(ctx context.Context, id string, in model.TaskInput) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
}

// Handler serves the task REST endpoints.
type Handler struct {
	svc    TaskService
	logger *slog.Logger
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc TaskService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.addTask)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PUT /api/tasks/{id}", h.editTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)
	mux.HandleFunc("GET /healthz", h.health)
}

// Routes returns the full middleware-wrapped API handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return httpmw.Chain(mux,
		httpmw.WithRequestID,
		httpmw.WithAccessLog(h.logger),
		httpmw.WithRecover(h.logger),
	)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		return err
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// writeServiceErr maps a service error onto the HTTP error contract.
func (h *Handler) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, service.ErrNotFound):
		writeErr(w, http.StatusNotFound, "task not found")
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", httpmw.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeErr(w, http.StatusInternalServerError, "internal server error")
	}
}

// GET /api/tasks
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListTasks(r.Context())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// POST /api/tasks
func (h *Handler) addTask(w http.ResponseWriter, r *http.Request) {
	var in model.TaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}

	task, err := h.svc.AddTask(r.Context(), in)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// GET /api/tasks/{id}
func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// PUT /api/tasks/{id}
func (h *Handler) editTask(w http.ResponseWriter, r *http.Request) {
	var in model.TaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}

	task, err := h.svc.EditTask(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DELETE /api/tasks/{id}
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /healthz
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
