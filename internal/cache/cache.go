// Package cache holds the in-process task snapshot every view is derived from.
package cache

import (
	"sync"

	"taskdeck/internal/model"
)

// TaskCache maps task id to task while remembering the order the server returned them in.
// All reads hand out deep copies.
type TaskCache struct {
	mu    sync.RWMutex
	tasks map[model.TaskID]model.Task
	order []model.TaskID
}

func New() *TaskCache {
	return &TaskCache{tasks: make(map[model.TaskID]model.Task)}
}

// Replace overwrites the cache with a server snapshot. A repeated id keeps its first position
// and its last value.
func (c *TaskCache) Replace(tasks []model.Task) {
	next := make(map[model.TaskID]model.Task, len(tasks))
	order := make([]model.TaskID, 0, len(tasks))
	for _, t := range tasks {
		if _, seen := next[t.ID]; !seen {
			order = append(order, t.ID)
		}
		next[t.ID] = t.Clone()
	}

	c.mu.Lock()
	c.tasks = next
	c.order = order
	c.mu.Unlock()
}

// Get returns a copy of the task.
func (c *TaskCache) Get(id model.TaskID) (model.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// Patch applies a local, unconfirmed update. Unknown ids are ignored; the return value
// tells whether anything was patched.
func (c *TaskCache) Patch(id model.TaskID, patch model.TaskPatch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	if !ok {
		return false
	}
	patch.Apply(&t)
	c.tasks[id] = t
	return true
}

// Update runs fn on a copy of the task and stores the result, all under the write lock,
// so read-modify-write toggles cannot interleave with a Replace.
func (c *TaskCache) Update(id model.TaskID, fn func(*model.Task) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	if !ok {
		return false
	}
	t = t.Clone()
	if !fn(&t) {
		return false
	}
	c.tasks[id] = t
	return true
}

// Snapshot returns every task in server order.
func (c *TaskCache) Snapshot() []model.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Task, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tasks[id].Clone())
	}
	return out
}

// Len is the number of cached tasks.
func (c *TaskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Clear discards the cache, e.g. on logout.
func (c *TaskCache) Clear() {
	c.mu.Lock()
	c.tasks = make(map[model.TaskID]model.Task)
	c.order = nil
	c.mu.Unlock()
}
