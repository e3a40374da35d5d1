package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskdeck/internal/model"
	"taskdeck/internal/notify"
	"taskdeck/internal/view"
)

type recordingNotifier struct {
	got []notify.Reminder
}

func (r *recordingNotifier) NotifyReminder(_ context.Context, rem notify.Reminder) error {
	r.got = append(r.got, rem)
	return nil
}

func TestRelayNotifier(t *testing.T) {
	relay := &relayNotifier{}
	rem := notify.Reminder{TaskID: 3, Title: "Call mom"}

	if err := relay.NotifyReminder(context.Background(), rem); !errors.Is(err, notify.ErrNotPermitted) {
		t.Fatalf("detached relay should fall back, got %v", err)
	}

	target := &recordingNotifier{}
	relay.attach(target)
	if err := relay.NotifyReminder(context.Background(), rem); err != nil {
		t.Fatal(err)
	}
	if len(target.got) != 1 || target.got[0].TaskID != 3 {
		t.Errorf("forwarded = %+v", target.got)
	}
}

func TestTaskLine(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.Local)
	minutes := 90
	task := model.Task{
		ID:              12,
		Title:           "Pay rent",
		Category:        "bills",
		DueDate:         model.NewTimestamp(now.Add(-time.Hour)),
		ReminderMinutes: &minutes,
		Subtasks:        []model.Subtask{{Text: "a", Completed: true}, {Text: "b"}},
	}
	line := taskLine(task, view.ProgressOf(task), now)
	for _, want := range []string{"#12 [ ] Pay rent (Other)", "OVERDUE", "remind 1.5h", "1/2"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q does not contain %q", line, want)
		}
	}

	task.Completed = true
	line = taskLine(task, view.ProgressOf(task), now)
	if strings.Contains(line, "OVERDUE") || !strings.Contains(line, "[x]") || !strings.Contains(line, "2/2") {
		t.Errorf("completed line = %q", line)
	}
}
