package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"taskdeck/internal/cache"
	"taskdeck/internal/logger"
	"taskdeck/internal/model"
	"taskdeck/internal/notify"
	"taskdeck/internal/remote"
	"taskdeck/internal/repository"
	"taskdeck/internal/view"
)

// Credentials persists the bearer token of the signed-in user.
type Credentials interface {
	Save(ctx context.Context, token string) (*model.Session, error)
	Current(ctx context.Context) (*model.Session, error)
	Invalidate(ctx context.Context) error
}

// SessionOptions tunes the background jobs of a session.
type SessionOptions struct {
	ReminderInterval time.Duration
	RefreshInterval  time.Duration
	// PruneAt is the HH:MM at which the reminder ledger is pruned daily; empty disables it.
	PruneAt  string
	Location *time.Location
	Now      func() time.Time
}

// Session owns the cache, the pipeline and the timers of one signed-in user.
// Presentation adapters talk to the engine only through it.
type Session struct {
	opts      SessionOptions
	creds     Credentials
	cache     *cache.TaskCache
	tasks     *TaskService
	reminders *ReminderService
	toasts    *notify.Center

	mu        sync.Mutex
	scheduler *SchedulerService
	stopped   []context.Context
}

func NewSession(opts SessionOptions, creds Credentials, c *cache.TaskCache, tasks *TaskService, reminders *ReminderService, toasts *notify.Center) *Session {
	if opts.ReminderInterval <= 0 {
		opts.ReminderInterval = 30 * time.Second
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 60 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		opts:      opts,
		creds:     creds,
		cache:     c,
		tasks:     tasks,
		reminders: reminders,
		toasts:    toasts,
	}
	tasks.OnSessionExpired(func(ctx context.Context) {
		if err := s.Logout(ctx); err != nil {
			logger.Error(ctx, err, "logout after session expiry")
		}
	})
	return s
}

// Login stores token as the session credential. It does not start the session.
func (s *Session) Login(ctx context.Context, token string) error {
	if _, err := s.creds.Save(ctx, token); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	logger.Info(ctx, "credential stored")
	return nil
}

// Start loads the tasks and starts the reminder scan and the auto-refresh.
// It fails with ErrSessionExpired when no credential is stored or the store rejects it.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.creds.Current(ctx); err != nil {
		if errors.Is(err, repository.ErrNoSession) {
			return fmt.Errorf("start session: %w", remote.ErrSessionExpired)
		}
		return fmt.Errorf("start session: %w", err)
	}

	if s.Active() {
		return nil
	}

	s.tasks.Open()
	if err := s.tasks.Refresh(ctx); err != nil {
		if isSessionExpired(err) {
			return fmt.Errorf("start session: %w", err)
		}
		logger.Warn(ctx, "initial refresh failed, continuing with an empty cache", "err", err)
	}

	scheduler := NewSchedulerService(s.opts.Location)
	if _, err := scheduler.ScheduleInterval(s.opts.ReminderInterval, s.job("reminders", s.opts.ReminderInterval, s.scanReminders)); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	if _, err := scheduler.ScheduleInterval(s.opts.RefreshInterval, s.job("refresh", s.opts.RefreshInterval, s.tasks.Refresh)); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	if s.opts.PruneAt != "" {
		if _, err := scheduler.ScheduleDaily(s.opts.PruneAt, s.job("prune", time.Minute, s.pruneLedger)); err != nil {
			return fmt.Errorf("schedule ledger prune: %w", err)
		}
	}

	s.mu.Lock()
	if s.scheduler != nil {
		s.mu.Unlock()
		return nil
	}
	s.scheduler = scheduler
	scheduler.Start()
	s.mu.Unlock()

	logger.Info(ctx, "session started", "tasks", s.cache.Len())
	return nil
}

// Load fills the cache once without starting any timer. One-shot commands use it.
func (s *Session) Load(ctx context.Context) error {
	if _, err := s.creds.Current(ctx); err != nil {
		if errors.Is(err, repository.ErrNoSession) {
			return fmt.Errorf("load tasks: %w", remote.ErrSessionExpired)
		}
		return fmt.Errorf("load tasks: %w", err)
	}
	s.tasks.Open()
	return s.tasks.Refresh(ctx)
}

func (s *Session) job(name string, timeout time.Duration, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrLoggedOut) {
			logger.Warn(ctx, "scheduled job failed", "job", name, "err", err)
		}
	}
}

func (s *Session) scanReminders(ctx context.Context) error {
	_, err := s.reminders.Scan(ctx, s.cache.Snapshot(), s.opts.Now())
	return err
}

func (s *Session) pruneLedger(ctx context.Context) error {
	return s.reminders.Prune(ctx, s.opts.Now())
}

// ScanReminders runs one reminder scan immediately.
func (s *Session) ScanReminders(ctx context.Context) (int, error) {
	return s.reminders.Scan(ctx, s.cache.Snapshot(), s.opts.Now())
}

// Active reports whether the session has been started and not logged out.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler != nil
}

// Logout stops the timers without waiting for running jobs, discards the cache,
// forgets the credential and clears the reminder ledger. It is safe to call from a job.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.scheduler != nil {
		s.stopped = append(s.stopped, s.scheduler.Stop())
		s.scheduler = nil
	}
	s.mu.Unlock()

	s.tasks.Close()

	ctx = context.WithoutCancel(ctx)
	var errs []error
	if err := s.creds.Invalidate(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.reminders.Reset(ctx); err != nil {
		errs = append(errs, err)
	}
	logger.Info(ctx, "logged out")
	return errors.Join(errs...)
}

// Shutdown stops the timers and waits for running jobs until ctx is done.
// Unlike Logout it keeps the credential.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.scheduler != nil {
		s.stopped = append(s.stopped, s.scheduler.Stop())
		s.scheduler = nil
	}
	pending := s.stopped
	s.stopped = nil
	s.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// FilteredTasks is the list view.
func (s *Session) FilteredTasks(search string, filter view.StatusFilter) []model.Task {
	return view.Compose(s.cache.Snapshot(), search, filter)
}

// Task is the detail view.
func (s *Session) Task(id model.TaskID) (model.Task, bool) {
	return s.cache.Get(id)
}

func (s *Session) Progress(t model.Task) view.Progress {
	return view.ProgressOf(t)
}

func (s *Session) Aggregates() view.Aggregates {
	return view.Aggregate(s.cache.Snapshot())
}

// Toasts drains the pending in-app notifications.
func (s *Session) Toasts() []notify.Toast {
	return s.toasts.Drain()
}

func (s *Session) Refresh(ctx context.Context) error {
	return s.tasks.Refresh(ctx)
}

func (s *Session) ToggleComplete(ctx context.Context, id model.TaskID) error {
	_, err := s.tasks.ToggleComplete(ctx, id)
	return err
}

func (s *Session) ToggleSubtask(ctx context.Context, id model.TaskID, index int) error {
	_, err := s.tasks.ToggleSubtask(ctx, id, index)
	return err
}

func (s *Session) ToggleSubtaskByID(ctx context.Context, id model.TaskID, subtaskID string) error {
	_, err := s.tasks.ToggleSubtaskByID(ctx, id, subtaskID)
	return err
}

func (s *Session) SubmitForm(ctx context.Context, editID model.TaskID, form model.TaskFields) (model.TaskID, error) {
	return s.tasks.SubmitForm(ctx, editID, form)
}

func (s *Session) DeleteTask(ctx context.Context, id model.TaskID) error {
	return s.tasks.DeleteTask(ctx, id)
}

func (s *Session) DeleteMany(ctx context.Context, ids []model.TaskID) error {
	return s.tasks.DeleteMany(ctx, ids)
}

func (s *Session) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	return s.tasks.Import(ctx, r)
}

func (s *Session) Export(w io.Writer) error {
	return s.tasks.Export(w)
}
