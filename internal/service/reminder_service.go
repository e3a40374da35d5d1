package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskdeck/internal/logger"
	"taskdeck/internal/metrics"
	"taskdeck/internal/model"
	"taskdeck/internal/notify"
)

// ReminderLedger remembers which due occurrences were already announced.
type ReminderLedger interface {
	Notified(ctx context.Context, taskID model.TaskID, due time.Time) (bool, error)
	MarkNotified(ctx context.Context, taskID model.TaskID, due, at time.Time) error
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Clear(ctx context.Context) error
}

// DefaultReminderGrace is how long after the deadline a missed reminder is still delivered.
const DefaultReminderGrace = 5 * time.Minute

// ReminderService decides which tasks need a due-date reminder and delivers it.
type ReminderService struct {
	ledger  ReminderLedger
	system  notify.SystemNotifier
	toasts  *notify.Center
	metrics *metrics.Metrics
	grace   time.Duration
}

func NewReminderService(ledger ReminderLedger, system notify.SystemNotifier, toasts *notify.Center, m *metrics.Metrics, grace time.Duration) *ReminderService {
	if system == nil {
		system = notify.Disabled{}
	}
	if grace <= 0 {
		grace = DefaultReminderGrace
	}
	return &ReminderService{ledger: ledger, system: system, toasts: toasts, metrics: m, grace: grace}
}

// InWindow reports whether t's deadline is close enough to remind about:
// -grace < due-now <= lead. Completed tasks and tasks without a deadline never qualify.
func (s *ReminderService) InWindow(t model.Task, now time.Time) bool {
	if t.Completed || !t.HasDueDate() {
		return false
	}
	left := t.DueDate.Sub(now)
	return left > -s.grace && left <= t.ReminderLead()
}

// Scan announces every task in its reminder window that was not announced for the same
// deadline before. It returns how many reminders were delivered.
func (s *ReminderService) Scan(ctx context.Context, tasks []model.Task, now time.Time) (int, error) {
	fired := 0
	var errs []error
	for _, t := range tasks {
		if !s.InWindow(t, now) {
			continue
		}
		due := t.DueDate.Time

		done, err := s.ledger.Notified(ctx, t.ID, due)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			continue
		}
		// Recorded before delivery: a reminder may be lost, never repeated.
		if err := s.ledger.MarkNotified(ctx, t.ID, due, now); err != nil {
			errs = append(errs, err)
			continue
		}

		s.deliver(ctx, t, due)
		fired++
	}
	if len(errs) > 0 {
		return fired, fmt.Errorf("reminder scan: %w", errors.Join(errs...))
	}
	return fired, nil
}

func (s *ReminderService) deliver(ctx context.Context, t model.Task, due time.Time) {
	err := s.system.NotifyReminder(ctx, notify.Reminder{TaskID: t.ID, Title: t.Title, Due: due})
	if err == nil {
		s.metrics.ReminderFired("system")
		logger.Info(ctx, "reminder sent", "task", t.ID, "channel", "system")
		return
	}
	if !errors.Is(err, notify.ErrNotPermitted) {
		logger.Error(ctx, err, "system notification failed, falling back to toast", "task", t.ID)
	}
	s.toasts.Push(notify.KindInfo, "🔔 Reminder: "+t.Title, notify.OpenAction(t.ID))
	s.metrics.ReminderFired("toast")
	logger.Info(ctx, "reminder sent", "task", t.ID, "channel", "toast")
}

// Prune forgets occurrences that can no longer fire.
func (s *ReminderService) Prune(ctx context.Context, now time.Time) error {
	removed, err := s.ledger.PruneBefore(ctx, now.Add(-s.grace))
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Debug(ctx, "pruned reminder ledger", "rows", removed)
	}
	return nil
}

// Reset clears the ledger, e.g. on logout.
func (s *ReminderService) Reset(ctx context.Context) error {
	return s.ledger.Clear(ctx)
}
