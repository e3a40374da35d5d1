package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCenterDrain(t *testing.T) {
	c := NewCenter()
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	c.Success("Task Completed!")
	c.Push(KindInfo, "Reminder: Call mom", OpenAction(12))

	got := c.Drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 toasts, got %d", len(got))
	}
	if got[0].Kind != KindSuccess || got[0].Message != "Task Completed!" {
		t.Errorf("unexpected first toast %+v", got[0])
	}
	if got[1].Action != "open:12" || got[1].CreatedAt.IsZero() {
		t.Errorf("unexpected second toast %+v", got[1])
	}
	if c.Pending() != 0 || len(c.Drain()) != 0 {
		t.Error("Drain must empty the queue")
	}
}

func TestCenterDropsOldest(t *testing.T) {
	c := NewCenter()
	c.capacity = 2
	c.Info("a")
	c.Info("b")
	c.Info("c")

	got := c.Drain()
	if len(got) != 2 || got[0].Message != "b" || got[1].Message != "c" {
		t.Errorf("unexpected queue %+v", got)
	}
}

func TestCenterHook(t *testing.T) {
	c := NewCenter()
	var kinds []Kind
	c.OnPush(func(t Toast) { kinds = append(kinds, t.Kind) })
	c.Error("Network Error")
	c.Warning("Session expired")
	if len(kinds) != 2 || kinds[0] != KindError || kinds[1] != KindWarning {
		t.Errorf("hook saw %v", kinds)
	}
}

func TestDisabledNotifier(t *testing.T) {
	var n SystemNotifier = Disabled{}
	if err := n.NotifyReminder(context.Background(), Reminder{TaskID: 1}); !errors.Is(err, ErrNotPermitted) {
		t.Errorf("expected ErrNotPermitted, got %v", err)
	}
}
