package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskdeck/internal/model"
	"taskdeck/internal/notify"
	"taskdeck/internal/remote"
	"taskdeck/internal/view"
)

func newTestSession(h *harness, creds *memCredentials, ledger *memLedger, now time.Time) *Session {
	reminders := NewReminderService(ledger, nil, h.toasts, h.metrics, 0)
	return NewSession(SessionOptions{
		ReminderInterval: time.Hour,
		RefreshInterval:  time.Hour,
		Location:         time.UTC,
		Now:              func() time.Time { return now },
	}, creds, h.cache, h.svc, reminders, h.toasts)
}

func TestSessionStartRequiresCredential(t *testing.T) {
	h := newHarness(model.Task{ID: 1})
	s := newTestSession(h, &memCredentials{}, newMemLedger(), scanStart)

	err := s.Start(context.Background())
	if !errors.Is(err, remote.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if s.Active() || h.store.callCount("list") != 0 {
		t.Error("session must not start without a credential")
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(
		model.Task{ID: 1, Title: "Work report", Category: model.CategoryWork},
		model.Task{ID: 2, Title: "Gym", Category: model.CategoryPersonal, Completed: true},
		model.Task{ID: 3, Title: "Call mom", DueDate: model.NewTimestamp(scanStart.Add(30 * time.Second))},
	)
	creds := &memCredentials{}
	ledger := newMemLedger()
	s := newTestSession(h, creds, ledger, scanStart)
	ctx := context.Background()

	if err := s.Login(ctx, "token"); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Shutdown(ctx)

	if !s.Active() {
		t.Fatal("session should be active")
	}
	if got := s.FilteredTasks("work", view.FilterPending); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("FilteredTasks = %+v", got)
	}
	agg := s.Aggregates()
	if agg.Total != 3 || agg.Completed != 1 || agg.Pending != 2 {
		t.Errorf("Aggregates = %+v", agg)
	}
	if n, err := s.ScanReminders(ctx); err != nil || n != 1 {
		t.Errorf("ScanReminders = %d, %v", n, err)
	}
	toasts := s.Toasts()
	if len(toasts) != 1 || toasts[0].Action != notify.OpenAction(3) {
		t.Errorf("Toasts = %+v", toasts)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s.Active() || h.cache.Len() != 0 || ledger.Len() != 0 {
		t.Error("logout must stop timers, clear the cache and the ledger")
	}
	if _, err := creds.Current(ctx); err == nil {
		t.Error("logout must forget the credential")
	}
	if _, ok := s.Task(1); ok {
		t.Error("detail view must be empty after logout")
	}
}

func TestSessionExpiryLogsOut(t *testing.T) {
	h := newHarness(model.Task{ID: 1, Title: "A"})
	creds := &memCredentials{token: "token"}
	s := newTestSession(h, creds, newMemLedger(), scanStart)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown(ctx)

	h.store.updateErr = func(model.TaskID) error { return remote.ErrSessionExpired }
	if err := s.ToggleComplete(ctx, 1); !errors.Is(err, remote.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if s.Active() || h.cache.Len() != 0 {
		t.Error("an expired session must be logged out")
	}
	if _, err := creds.Current(ctx); err == nil {
		t.Error("credential must be invalidated")
	}
}

func TestSessionStartSurvivesNetworkError(t *testing.T) {
	h := newHarness(model.Task{ID: 1})
	h.store.listHook = func(context.Context) error { return remote.ErrNetworkUnavailable }
	s := newTestSession(h, &memCredentials{token: "token"}, newMemLedger(), scanStart)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("a transient failure must not prevent start: %v", err)
	}
	defer s.Shutdown(ctx)

	h.store.listHook = nil
	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if len(s.FilteredTasks("", view.FilterAll)) != 1 {
		t.Error("refresh should load the task")
	}
}

func TestSessionLoadDoesNotStartTimers(t *testing.T) {
	h := newHarness(model.Task{ID: 1, Title: "A"})
	s := newTestSession(h, &memCredentials{token: "token"}, newMemLedger(), scanStart)

	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Active() {
		t.Error("Load must not start the timers")
	}
	if _, ok := s.Task(1); !ok {
		t.Error("Load should fill the cache")
	}

	h.store.listHook = func(context.Context) error { return remote.ErrNetworkUnavailable }
	if err := s.Load(context.Background()); !errors.Is(err, remote.ErrNetworkUnavailable) {
		t.Errorf("Load must surface network errors, got %v", err)
	}
}
