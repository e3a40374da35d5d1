package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"taskdeck/internal/metrics"
	"taskdeck/internal/model"
	"taskdeck/internal/notify"
)

var scanStart = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func dueIn(id model.TaskID, d time.Duration) model.Task {
	return model.Task{ID: id, Title: "Call mom", DueDate: model.NewTimestamp(scanStart.Add(d))}
}

func TestInWindow(t *testing.T) {
	svc := NewReminderService(newMemLedger(), nil, notify.NewCenter(), nil, 5*time.Minute)
	thirty := 30

	tests := []struct {
		name string
		task model.Task
		want bool
	}{
		{"no due date", model.Task{ID: 1}, false},
		{"before default lead", dueIn(1, 61*time.Second), false},
		{"inside default lead", dueIn(1, 59*time.Second), true},
		{"exactly at lead", dueIn(1, time.Minute), true},
		{"just passed", dueIn(1, -4*time.Minute), true},
		{"beyond grace", dueIn(1, -6*time.Minute), false},
		{"completed", func() model.Task { t := dueIn(1, 30*time.Second); t.Completed = true; return t }(), false},
		{"custom lead", func() model.Task { t := dueIn(1, 20*time.Minute); t.ReminderMinutes = &thirty; return t }(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.InWindow(tt.task, scanStart); got != tt.want {
				t.Errorf("InWindow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanFiresOncePerOccurrence(t *testing.T) {
	ledger := newMemLedger()
	toasts := notify.NewCenter()
	m := metrics.New(prometheus.NewRegistry())
	svc := NewReminderService(ledger, notify.Disabled{}, toasts, m, 0)
	ctx := context.Background()

	task := dueIn(7, 90*time.Second)
	tasks := []model.Task{task}

	if n, err := svc.Scan(ctx, tasks, scanStart); err != nil || n != 0 {
		t.Fatalf("scan before the window fired %d (err %v)", n, err)
	}
	if n, _ := svc.Scan(ctx, tasks, scanStart.Add(31*time.Second)); n != 1 {
		t.Fatalf("first scan inside the window fired %d, want 1", n)
	}
	if n, _ := svc.Scan(ctx, tasks, scanStart.Add(61*time.Second)); n != 0 {
		t.Errorf("second scan of the same occurrence fired %d", n)
	}
	if n, _ := svc.Scan(ctx, tasks, scanStart.Add(3*time.Minute)); n != 0 {
		t.Errorf("scan after the deadline fired %d", n)
	}

	got := toasts.Drain()
	if len(got) != 1 || got[0].Message != "🔔 Reminder: Call mom" || got[0].Action != "open:7" {
		t.Errorf("toasts = %+v", got)
	}
	if n := testutil.ToFloat64(m.RemindersFired.WithLabelValues("toast")); n != 1 {
		t.Errorf("toast metric = %v", n)
	}

	moved := dueIn(7, 24*time.Hour+30*time.Second)
	if n, _ := svc.Scan(ctx, []model.Task{moved}, scanStart.Add(24*time.Hour)); n != 1 {
		t.Error("a new due occurrence must fire again")
	}
}

func TestScanCatchesSuspendedTick(t *testing.T) {
	svc := NewReminderService(newMemLedger(), nil, notify.NewCenter(), nil, 5*time.Minute)
	tasks := []model.Task{dueIn(3, 45*time.Second)}

	// The process slept through the whole lead window.
	if n, _ := svc.Scan(context.Background(), tasks, scanStart.Add(2*time.Minute)); n != 1 {
		t.Errorf("a scan shortly after the deadline must still fire, got %d", n)
	}
}

func TestScanPrefersSystemNotifier(t *testing.T) {
	system := &fakeNotifier{}
	toasts := notify.NewCenter()
	svc := NewReminderService(newMemLedger(), system, toasts, nil, 0)

	if n, _ := svc.Scan(context.Background(), []model.Task{dueIn(5, 10*time.Second)}, scanStart); n != 1 {
		t.Fatalf("fired %d", n)
	}
	if len(system.sent) != 1 || system.sent[0].TaskID != 5 {
		t.Errorf("system notifications = %+v", system.sent)
	}
	if toasts.Pending() != 0 {
		t.Error("no toast expected when the system channel works")
	}
}

func TestScanFallsBackOnSystemFailure(t *testing.T) {
	system := &fakeNotifier{err: errors.New("telegram down")}
	toasts := notify.NewCenter()
	svc := NewReminderService(newMemLedger(), system, toasts, nil, 0)

	if n, _ := svc.Scan(context.Background(), []model.Task{dueIn(5, 10*time.Second)}, scanStart); n != 1 {
		t.Fatalf("fired %d", n)
	}
	if toasts.Pending() != 1 {
		t.Error("expected fallback toast")
	}
}

func TestPruneAndReset(t *testing.T) {
	ledger := newMemLedger()
	svc := NewReminderService(ledger, nil, notify.NewCenter(), nil, 5*time.Minute)
	ctx := context.Background()

	_ = ledger.MarkNotified(ctx, 1, scanStart.Add(-time.Hour), scanStart)
	_ = ledger.MarkNotified(ctx, 2, scanStart.Add(time.Minute), scanStart)

	if err := svc.Prune(ctx, scanStart); err != nil {
		t.Fatal(err)
	}
	if ledger.Len() != 1 {
		t.Errorf("expected 1 entry after prune, got %d", ledger.Len())
	}
	if err := svc.Reset(ctx); err != nil || ledger.Len() != 0 {
		t.Errorf("reset left %d entries (err %v)", ledger.Len(), err)
	}
}
