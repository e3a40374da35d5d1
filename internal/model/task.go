package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TaskID is the identifier assigned by the remote store. The client never invents one.
type TaskID int64

func (id TaskID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseTaskID parses a decimal task identifier.
func ParseTaskID(raw string) (TaskID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return TaskID(v), nil
}

// Recurrence tells the server how to spawn the next occurrence. The client only displays it.
type Recurrence string

const (
	RecurNever   Recurrence = "never"
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// Recurring reports whether the value asks for repetition.
func (r Recurrence) Recurring() bool {
	return r != "" && r != RecurNever
}

// Subtask is a checklist item. Its position inside Task.Subtasks is its address;
// ID is only present for subtasks created by this client.
type Subtask struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Task represents a single todo as served by the remote store.
type Task struct {
	ID              TaskID     `json:"id"`
	Title           string     `json:"title"`
	Notes           string     `json:"notes"`
	DueDate         *Timestamp `json:"due_date"`
	ReminderMinutes *int       `json:"reminder_minutes,omitempty"`
	Category        Category   `json:"category"`
	Priority        string     `json:"priority"`
	Recurrence      Recurrence `json:"recurrence"`
	Tags            []string   `json:"tags,omitempty"`
	Completed       bool       `json:"completed"`
	Subtasks        []Subtask  `json:"subtasks"`
	CreatedAt       *Timestamp `json:"created_at,omitempty"`
}

// DefaultReminderLead is used when a task has a due date but no reminder_minutes.
const DefaultReminderLead = time.Minute

// Clone returns a deep copy so callers can never alias cache internals.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	if t.CreatedAt != nil {
		created := *t.CreatedAt
		out.CreatedAt = &created
	}
	if t.ReminderMinutes != nil {
		minutes := *t.ReminderMinutes
		out.ReminderMinutes = &minutes
	}
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.Subtasks != nil {
		out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	return out
}

// HasDueDate reports whether the task carries a usable deadline.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil && !t.DueDate.IsZero()
}

// Overdue is true for open tasks whose deadline already passed.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && t.HasDueDate() && t.DueDate.Before(now)
}

// ReminderLead is how long before the deadline a reminder should fire.
func (t Task) ReminderLead() time.Duration {
	if t.ReminderMinutes == nil || *t.ReminderMinutes <= 0 {
		return DefaultReminderLead
	}
	return time.Duration(*t.ReminderMinutes) * time.Minute
}

// ReminderLabel renders reminder_minutes the way the list shows it: "30m" or "1.5h".
func (t Task) ReminderLabel() string {
	if t.ReminderMinutes == nil || *t.ReminderMinutes <= 0 {
		return ""
	}
	m := *t.ReminderMinutes
	if m >= 60 {
		return strconv.FormatFloat(float64(m)/60, 'f', -1, 64) + "h"
	}
	return strconv.Itoa(m) + "m"
}

// TaskFields is the payload of the task form. It is sent as-is on create and on full update.
type TaskFields struct {
	Title           string     `json:"title"`
	Notes           string     `json:"notes"`
	DueDate         *Timestamp `json:"due_date"`
	ReminderMinutes *int       `json:"reminder_minutes,omitempty"`
	Category        Category   `json:"category,omitempty"`
	Priority        string     `json:"priority,omitempty"`
	Recurrence      Recurrence `json:"recurrence,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Subtasks        []Subtask  `json:"subtasks"`
}

// FieldsOf copies the editable fields of an existing task, e.g. to prefill an edit form.
func FieldsOf(t Task) TaskFields {
	c := t.Clone()
	return TaskFields{
		Title:           c.Title,
		Notes:           c.Notes,
		DueDate:         c.DueDate,
		ReminderMinutes: c.ReminderMinutes,
		Category:        c.Category,
		Priority:        c.Priority,
		Recurrence:      c.Recurrence,
		Tags:            c.Tags,
		Subtasks:        c.Subtasks,
	}
}
