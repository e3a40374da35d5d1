package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"taskdeck/internal/cache"
	"taskdeck/internal/metrics"
	"taskdeck/internal/model"
	"taskdeck/internal/notify"
	"taskdeck/internal/repository"
)

// fakeStore is an in-memory task store. The *Err hooks, when set, replace the call's outcome.
type fakeStore struct {
	mu     sync.Mutex
	tasks  map[model.TaskID]model.Task
	nextID model.TaskID
	calls  []string

	listHook  func(ctx context.Context) error
	createErr func(fields model.TaskFields) error
	updateErr func(id model.TaskID) error
	deleteErr error
	lastPatch model.TaskPatch
	lastBulk  []model.TaskID
}

func newFakeStore(tasks ...model.Task) *fakeStore {
	s := &fakeStore{tasks: make(map[model.TaskID]model.Task), nextID: 1}
	for _, t := range tasks {
		s.tasks[t.ID] = t.Clone()
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
	return s
}

func (s *fakeStore) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *fakeStore) callCount(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (s *fakeStore) List(ctx context.Context) ([]model.Task, error) {
	s.record("list")
	if s.listHook != nil {
		if err := s.listHook(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, fields model.TaskFields) (model.Task, error) {
	s.record("create")
	if s.createErr != nil {
		if err := s.createErr(fields); err != nil {
			return model.Task{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := model.Task{
		ID:       s.nextID,
		Title:    fields.Title,
		Notes:    fields.Notes,
		DueDate:  fields.DueDate,
		Category: fields.Category,
		Subtasks: fields.Subtasks,
	}
	s.nextID++
	s.tasks[t.ID] = t
	return t.Clone(), nil
}

func (s *fakeStore) Update(_ context.Context, id model.TaskID, patch model.TaskPatch) error {
	s.record("update")
	if s.updateErr != nil {
		if err := s.updateErr(id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPatch = patch
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	patch.Apply(&t)
	s.tasks[id] = t
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id model.TaskID) error {
	s.record("delete")
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) BulkDelete(_ context.Context, ids []model.TaskID) error {
	s.record("bulk_delete")
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBulk = append([]model.TaskID(nil), ids...)
	for _, id := range ids {
		delete(s.tasks, id)
	}
	return nil
}

type ledgerKey struct {
	id  model.TaskID
	due int64
}

type memLedger struct {
	mu      sync.Mutex
	entries map[ledgerKey]time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[ledgerKey]time.Time)}
}

func (l *memLedger) Notified(_ context.Context, id model.TaskID, due time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[ledgerKey{id, due.Unix()}]
	return ok, nil
}

func (l *memLedger) MarkNotified(_ context.Context, id model.TaskID, due, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[ledgerKey{id, due.Unix()}]; !ok {
		l.entries[ledgerKey{id, due.Unix()}] = at
	}
	return nil
}

func (l *memLedger) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k := range l.entries {
		if k.due < cutoff.Unix() {
			delete(l.entries, k)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) Clear(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[ledgerKey]time.Time)
	return nil
}

func (l *memLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []notify.Reminder
}

func (n *fakeNotifier) NotifyReminder(_ context.Context, r notify.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, r)
	return nil
}

type memCredentials struct {
	mu    sync.Mutex
	token string
}

func (c *memCredentials) Save(_ context.Context, token string) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return &model.Session{Token: token}, nil
}

func (c *memCredentials) Current(context.Context) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return nil, repository.ErrNoSession
	}
	return &model.Session{Token: c.token}, nil
}

func (c *memCredentials) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	return nil
}

type harness struct {
	store   *fakeStore
	cache   *cache.TaskCache
	toasts  *notify.Center
	metrics *metrics.Metrics
	svc     *TaskService
}

func newHarness(tasks ...model.Task) *harness {
	h := &harness{
		store:   newFakeStore(tasks...),
		cache:   cache.New(),
		toasts:  notify.NewCenter(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.svc = NewTaskService(h.store, h.cache, h.toasts, h.metrics)
	ids := 0
	h.svc.newID = func() string {
		ids++
		return fmt.Sprintf("sub-%d", ids)
	}
	return h
}

func (h *harness) load() {
	if err := h.svc.Refresh(context.Background()); err != nil {
		panic(err)
	}
}

func (h *harness) messages() []string {
	var out []string
	for _, t := range h.toasts.Drain() {
		out = append(out, t.Message)
	}
	return out
}
