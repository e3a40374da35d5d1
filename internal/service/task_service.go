package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"taskdeck/internal/cache"
	"taskdeck/internal/logger"
	"taskdeck/internal/metrics"
	"taskdeck/internal/model"
	"taskdeck/internal/notify"
	"taskdeck/internal/remote"
)

// TaskStore is the remote side of the pipeline; *remote.Client implements it.
type TaskStore interface {
	List(ctx context.Context) ([]model.Task, error)
	Create(ctx context.Context, fields model.TaskFields) (model.Task, error)
	Update(ctx context.Context, id model.TaskID, patch model.TaskPatch) error
	Delete(ctx context.Context, id model.TaskID) error
	BulkDelete(ctx context.Context, ids []model.TaskID) error
}

// MutationState is where a single mutation ended up.
type MutationState string

const (
	StateIdle            MutationState = "idle"
	StateOptimisticApply MutationState = "optimistic_apply"
	StateRemoteCall      MutationState = "remote_call"
	// StateReconciled means the remote call succeeded and the cache was refreshed.
	StateReconciled MutationState = "reconciled"
	// StateStale means the cache may disagree with the server until the next refresh.
	// Optimistic edits are not rolled back.
	StateStale MutationState = "stale"
)

// TaskService is the only writer of the task cache.
type TaskService struct {
	store   TaskStore
	cache   *cache.TaskCache
	toasts  *notify.Center
	metrics *metrics.Metrics
	newID   func() string

	generation atomic.Uint64
	closed     atomic.Bool

	mu        sync.Mutex
	onExpired func(context.Context)
}

func NewTaskService(store TaskStore, c *cache.TaskCache, toasts *notify.Center, m *metrics.Metrics) *TaskService {
	return &TaskService{
		store:   store,
		cache:   c,
		toasts:  toasts,
		metrics: m,
		newID:   uuid.NewString,
	}
}

// OnSessionExpired registers the hook run when the store rejects the credential.
func (s *TaskService) OnSessionExpired(fn func(context.Context)) {
	s.mu.Lock()
	s.onExpired = fn
	s.mu.Unlock()
}

// Open accepts work again after Close.
func (s *TaskService) Open() {
	s.closed.Store(false)
}

// Close discards the cache. A refresh that is still in flight will be dropped.
func (s *TaskService) Close() {
	s.closed.Store(true)
	s.generation.Add(1)
	s.cache.Clear()
	s.metrics.ResetCache()
}

// Refresh replaces the cache with the server's snapshot.
func (s *TaskService) Refresh(ctx context.Context) error {
	if s.closed.Load() {
		return ErrLoggedOut
	}
	gen := s.generation.Load()

	tasks, err := s.store.List(ctx)
	if err != nil {
		s.metrics.Refresh(classify(err), 0)
		s.report(ctx, "refresh", err)
		return fmt.Errorf("refresh tasks: %w", err)
	}
	if s.closed.Load() || gen != s.generation.Load() {
		logger.Debug(ctx, "dropping refresh that finished after logout")
		return ErrLoggedOut
	}

	s.cache.Replace(tasks)
	s.metrics.Refresh(statusSuccess, len(tasks))
	return nil
}

// ToggleComplete flips the completion flag locally, then sends it.
func (s *TaskService) ToggleComplete(ctx context.Context, id model.TaskID) (MutationState, error) {
	var completed bool
	ok := s.cache.Update(id, func(t *model.Task) bool {
		t.Completed = !t.Completed
		completed = t.Completed
		return true
	})
	if !ok {
		s.metrics.Mutation("toggle", statusNotFound)
		return StateIdle, fmt.Errorf("toggle task %s: %w", id, ErrTaskNotFound)
	}

	if err := s.store.Update(ctx, id, model.TaskPatch{Completed: &completed}); err != nil {
		s.fail(ctx, "toggle", err)
		return StateStale, fmt.Errorf("toggle task %s: %w", id, err)
	}

	s.metrics.Mutation("toggle", statusSuccess)
	if completed {
		s.toasts.Success("Task Completed!")
	} else {
		s.toasts.Info("Task marked as pending")
	}
	return s.reconcile(ctx), nil
}

// ToggleSubtask flips the subtask at index and sends the whole subtask list.
func (s *TaskService) ToggleSubtask(ctx context.Context, id model.TaskID, index int) (MutationState, error) {
	return s.toggleSubtask(ctx, id, func(subs []model.Subtask) int {
		return index
	})
}

// ToggleSubtaskByID resolves the position of subtaskID at toggle time.
func (s *TaskService) ToggleSubtaskByID(ctx context.Context, id model.TaskID, subtaskID string) (MutationState, error) {
	return s.toggleSubtask(ctx, id, func(subs []model.Subtask) int {
		for i, sub := range subs {
			if sub.ID != "" && sub.ID == subtaskID {
				return i
			}
		}
		return -1
	})
}

func (s *TaskService) toggleSubtask(ctx context.Context, id model.TaskID, locate func([]model.Subtask) int) (MutationState, error) {
	var (
		subtasks []model.Subtask
		missing  error
	)
	ok := s.cache.Update(id, func(t *model.Task) bool {
		i := locate(t.Subtasks)
		if i < 0 || i >= len(t.Subtasks) {
			missing = ErrSubtaskNotFound
			return false
		}
		t.Subtasks[i].Completed = !t.Subtasks[i].Completed
		subtasks = append([]model.Subtask(nil), t.Subtasks...)
		return true
	})
	switch {
	case missing != nil:
		s.metrics.Mutation("toggle_subtask", statusNotFound)
		return StateIdle, fmt.Errorf("toggle subtask of %s: %w", id, missing)
	case !ok:
		s.metrics.Mutation("toggle_subtask", statusNotFound)
		return StateIdle, fmt.Errorf("toggle subtask of %s: %w", id, ErrTaskNotFound)
	}

	if err := s.store.Update(ctx, id, model.TaskPatch{Subtasks: &subtasks}); err != nil {
		s.fail(ctx, "toggle_subtask", err)
		return StateStale, fmt.Errorf("toggle subtask of %s: %w", id, err)
	}
	s.metrics.Mutation("toggle_subtask", statusSuccess)
	return s.reconcile(ctx), nil
}

// SubmitForm creates a task when editID is zero and fully updates editID otherwise.
// Nothing is applied locally; the cache changes only through the following refresh.
func (s *TaskService) SubmitForm(ctx context.Context, editID model.TaskID, form model.TaskFields) (model.TaskID, error) {
	op := "create"
	if editID != 0 {
		op = "update"
	}

	form, err := s.prepare(form)
	if err != nil {
		s.fail(ctx, op, err)
		return 0, err
	}

	id := editID
	if editID == 0 {
		created, err := s.store.Create(ctx, form)
		if err != nil {
			s.fail(ctx, op, err)
			return 0, fmt.Errorf("create task: %w", err)
		}
		id = created.ID
		s.toasts.Success("Task Created")
	} else {
		if err := s.store.Update(ctx, editID, model.PatchFromFields(form)); err != nil {
			s.fail(ctx, op, err)
			return 0, fmt.Errorf("update task %s: %w", editID, err)
		}
		s.toasts.Success("Task Updated")
	}

	s.metrics.Mutation(op, statusSuccess)
	s.reconcile(ctx)
	return id, nil
}

// prepare validates the form and gives every new subtask a stable id.
func (s *TaskService) prepare(form model.TaskFields) (model.TaskFields, error) {
	form.Title = strings.TrimSpace(form.Title)
	if form.Title == "" {
		return form, &ValidationError{Field: "title", Message: "Title is required"}
	}

	subtasks := make([]model.Subtask, 0, len(form.Subtasks))
	for _, sub := range form.Subtasks {
		sub.Text = strings.TrimSpace(sub.Text)
		if sub.Text == "" {
			continue
		}
		if sub.ID == "" {
			sub.ID = s.newID()
		}
		subtasks = append(subtasks, sub)
	}
	form.Subtasks = subtasks
	return form, nil
}

// DeleteTask removes one task. Confirmation is the caller's job.
func (s *TaskService) DeleteTask(ctx context.Context, id model.TaskID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.fail(ctx, "delete", err)
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	s.metrics.Mutation("delete", statusSuccess)
	s.toasts.Info("Task Deleted")
	s.reconcile(ctx)
	return nil
}

// DeleteMany removes several tasks in one remote call. Partial failure is not distinguished.
func (s *TaskService) DeleteMany(ctx context.Context, ids []model.TaskID) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.BulkDelete(ctx, ids); err != nil {
		s.fail(ctx, "bulk_delete", err)
		return fmt.Errorf("delete %d tasks: %w", len(ids), err)
	}
	s.metrics.Mutation("bulk_delete", statusSuccess)
	s.toasts.Info("Tasks Deleted")
	s.reconcile(ctx)
	return nil
}

// reconcile refreshes after a successful remote call. A failed refresh leaves the cache stale.
func (s *TaskService) reconcile(ctx context.Context) MutationState {
	if err := s.Refresh(ctx); err != nil {
		return StateStale
	}
	return StateReconciled
}

// fail counts and reports a failed mutation.
func (s *TaskService) fail(ctx context.Context, op string, err error) {
	s.metrics.Mutation(op, classify(err))
	s.report(ctx, op, err)
}

// report publishes the user-facing side of an error and forces logout on session expiry.
func (s *TaskService) report(ctx context.Context, op string, err error) {
	switch classify(err) {
	case statusCanceled:
		logger.Debug(ctx, "operation canceled", "op", op)
		return
	case statusSessionExpired:
		logger.Warn(ctx, "session expired", "op", op)
		s.toasts.Error(UserMessage(err))
		s.expire(ctx)
		return
	case statusInvalid:
		s.toasts.Error(UserMessage(err))
		return
	}
	logger.Error(ctx, err, "operation failed", "op", op)
	s.toasts.Error(UserMessage(err))
}

func (s *TaskService) expire(ctx context.Context) {
	s.mu.Lock()
	fn := s.onExpired
	s.mu.Unlock()
	if fn != nil {
		fn(ctx)
	}
}

func uniqueIDs(ids []model.TaskID) []model.TaskID {
	seen := make(map[model.TaskID]struct{}, len(ids))
	out := make([]model.TaskID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ TaskStore = (*remote.Client)(nil)

// isSessionExpired is shared by the import loop and the session facade.
func isSessionExpired(err error) bool {
	return errors.Is(err, remote.ErrSessionExpired)
}
