// Package notify carries user-facing feedback: in-app toasts and system notifications.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskdeck/internal/model"
)

// Kind is the visual flavor of a toast.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Toast is a transient in-app message. Action, when set, is what clicking it does (e.g. "open:12").
type Toast struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenAction is the click-through that opens a task's detail view.
func OpenAction(id model.TaskID) string {
	return "open:" + id.String()
}

const defaultCapacity = 50

// Center queues toasts until an adapter drains them. When full the oldest toast is dropped.
type Center struct {
	mu       sync.Mutex
	queue    []Toast
	capacity int
	now      func() time.Time
	onPush   func(Toast)
}

func NewCenter() *Center {
	return &Center{capacity: defaultCapacity, now: time.Now}
}

// OnPush registers a hook called for every toast, outside the lock.
func (c *Center) OnPush(fn func(Toast)) {
	c.mu.Lock()
	c.onPush = fn
	c.mu.Unlock()
}

func (c *Center) Push(kind Kind, message, action string) {
	t := Toast{Kind: kind, Message: message, Action: action, CreatedAt: c.now()}

	c.mu.Lock()
	c.queue = append(c.queue, t)
	if over := len(c.queue) - c.capacity; over > 0 {
		c.queue = append([]Toast(nil), c.queue[over:]...)
	}
	hook := c.onPush
	c.mu.Unlock()

	if hook != nil {
		hook(t)
	}
}

func (c *Center) Success(message string) { c.Push(KindSuccess, message, "") }
func (c *Center) Info(message string)    { c.Push(KindInfo, message, "") }
func (c *Center) Warning(message string) { c.Push(KindWarning, message, "") }
func (c *Center) Error(message string)   { c.Push(KindError, message, "") }

// Drain returns the pending toasts, oldest first, and empties the queue.
func (c *Center) Drain() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	if out == nil {
		return []Toast{}
	}
	return out
}

// Pending is the number of undrained toasts.
func (c *Center) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// ErrNotPermitted means the system channel is unavailable; the caller falls back to a toast.
var ErrNotPermitted = errors.New("system notifications not permitted")

// Reminder is the payload of a due-date notification.
type Reminder struct {
	TaskID model.TaskID
	Title  string
	Due    time.Time
}

// SystemNotifier delivers notifications outside the application, e.g. a Telegram message.
type SystemNotifier interface {
	NotifyReminder(ctx context.Context, r Reminder) error
}

// Disabled is a SystemNotifier that always reports ErrNotPermitted.
type Disabled struct{}

func (Disabled) NotifyReminder(context.Context, Reminder) error { return ErrNotPermitted }
