// Package web exposes the session over a small JSON API plus a Prometheus endpoint.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskdeck/internal/logger"
	"taskdeck/internal/model"
	"taskdeck/internal/notify"
	"taskdeck/internal/remote"
	"taskdeck/internal/service"
	"taskdeck/internal/view"
)

// maxImportBytes bounds the body of POST /api/import.
const maxImportBytes = 4 << 20

// Engine is the session surface served over HTTP.
type Engine interface {
	FilteredTasks(search string, filter view.StatusFilter) []model.Task
	Task(id model.TaskID) (model.Task, bool)
	Progress(t model.Task) view.Progress
	Aggregates() view.Aggregates
	Toasts() []notify.Toast
	Refresh(ctx context.Context) error
	ToggleComplete(ctx context.Context, id model.TaskID) error
	ToggleSubtask(ctx context.Context, id model.TaskID, index int) error
	SubmitForm(ctx context.Context, editID model.TaskID, form model.TaskFields) (model.TaskID, error)
	DeleteTask(ctx context.Context, id model.TaskID) error
	DeleteMany(ctx context.Context, ids []model.TaskID) error
	Import(ctx context.Context, r io.Reader) (service.ImportReport, error)
	Export(w io.Writer) error
}

// TaskView is a task as rendered by the list and the detail endpoints.
type TaskView struct {
	model.Task
	Progress *view.Progress `json:"progress,omitempty"`
	Overdue  bool           `json:"overdue"`
}

type dashboardView struct {
	view.Aggregates
	Slices []view.Slice `json:"slices"`
}

type bulkRequest struct {
	IDs []model.TaskID `json:"ids"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	engine   Engine
	gatherer prometheus.Gatherer
	now      func() time.Time
}

func NewServer(engine Engine, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{engine: engine, gatherer: gatherer, now: time.Now}
}

// Router wires every route onto a fresh chi mux.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", s.listTasks)
		r.Post("/tasks", s.createTask)
		r.Delete("/tasks", s.deleteMany)
		r.Get("/tasks/{id}", s.getTask)
		r.Put("/tasks/{id}", s.updateTask)
		r.Delete("/tasks/{id}", s.deleteTask)
		r.Post("/tasks/{id}/toggle", s.toggleTask)
		r.Post("/tasks/{id}/subtasks/{index}/toggle", s.toggleSubtask)
		r.Get("/dashboard", s.dashboard)
		r.Get("/export", s.export)
		r.Post("/import", s.importTasks)
		r.Get("/toasts", s.toasts)
		r.Post("/refresh", s.refresh)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) render(t model.Task) TaskView {
	v := TaskView{Task: t, Overdue: t.Overdue(s.now())}
	if p := s.engine.Progress(t); p.Visible() {
		v.Progress = &p
	}
	return v
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, ok := view.ParseStatusFilter(q.Get("status"))
	if !ok {
		s.sendError(w, http.StatusBadRequest, "status must be all, completed or pending")
		return
	}
	tasks := s.engine.FilteredTasks(q.Get("search"), filter)
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, s.render(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	t, found := s.engine.Task(id)
	if !found {
		s.sendError(w, http.StatusNotFound, "Task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.render(t))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, 0, http.StatusCreated)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	s.submit(w, r, id, http.StatusOK)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, editID model.TaskID, status int) {
	var form model.TaskFields
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	id, err := s.engine.SubmitForm(r.Context(), editID, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if t, found := s.engine.Task(id); found {
		s.writeJSON(w, status, s.render(t))
		return
	}
	s.writeJSON(w, status, map[string]model.TaskID{"id": id})
}

func (s *Server) toggleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if err := s.engine.ToggleComplete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.afterMutation(w, id)
}

func (s *Server) toggleSubtask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		s.sendError(w, http.StatusBadRequest, "subtask index must be a non-negative number")
		return
	}
	if err := s.engine.ToggleSubtask(r.Context(), id, index); err != nil {
		s.fail(w, r, err)
		return
	}
	s.afterMutation(w, id)
}

func (s *Server) afterMutation(w http.ResponseWriter, id model.TaskID) {
	if t, found := s.engine.Task(id); found {
		s.writeJSON(w, http.StatusOK, s.render(t))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if !confirmed(r) {
		s.sendError(w, http.StatusPreconditionRequired, "confirm=true is required to delete")
		return
	}
	if err := s.engine.DeleteTask(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteMany(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		s.sendError(w, http.StatusPreconditionRequired, "confirm=true is required to delete")
		return
	}
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	if err := s.engine.DeleteMany(r.Context(), req.IDs); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dashboard(w http.ResponseWriter, _ *http.Request) {
	agg := s.engine.Aggregates()
	slices := agg.Slices()
	if slices == nil {
		slices = []view.Slice{}
	}
	s.writeJSON(w, http.StatusOK, dashboardView{Aggregates: agg, Slices: slices})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.csv"`)
	if err := s.engine.Export(w); err != nil {
		logger.Error(r.Context(), err, "export tasks")
	}
}

func (s *Server) importTasks(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	report, err := s.engine.Import(r.Context(), io.LimitReader(r.Body, maxImportBytes))
	if err != nil && report.Created == 0 && report.Failed == 0 {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) toasts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Toasts())
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Refresh(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (model.TaskID, bool) {
	id, err := model.ParseTaskID(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "task id must be a number")
		return 0, false
	}
	return id, true
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

// fail maps engine errors onto status codes; the body carries the user-facing message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *service.ValidationError
		rejected   *remote.RemoteRejectedError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation), errors.Is(err, service.ErrInvalidImport):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrTaskNotFound), errors.Is(err, service.ErrSubtaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, remote.ErrSessionExpired), errors.Is(err, service.ErrLoggedOut):
		status = http.StatusUnauthorized
	case errors.Is(err, remote.ErrNetworkUnavailable), errors.As(err, &rejected):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logger.Warn(r.Context(), "request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	s.sendError(w, status, service.UserMessage(err))
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logger.Warn(context.Background(), "writing JSON response", "err", err)
	}
}
