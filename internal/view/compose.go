// Package view derives presentation state from cached tasks. Everything here is pure.
package view

import (
	"strings"

	"taskdeck/internal/model"
)

// StatusFilter narrows the list by completion.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterCompleted StatusFilter = "completed"
	FilterPending   StatusFilter = "pending"
)

// ParseStatusFilter maps user input to a filter. Unknown values become FilterAll and ok is false.
func ParseStatusFilter(raw string) (StatusFilter, bool) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, true
	case FilterCompleted, "done":
		return FilterCompleted, true
	case FilterPending, "open":
		return FilterPending, true
	default:
		return FilterAll, false
	}
}

func (f StatusFilter) matches(t model.Task) bool {
	switch f {
	case FilterCompleted:
		return t.Completed
	case FilterPending:
		return !t.Completed
	default:
		return true
	}
}

// Compose keeps the tasks whose title or category contains search (case-insensitive)
// and whose status matches filter. Input order is preserved.
func Compose(tasks []model.Task, search string, filter StatusFilter) []model.Task {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !filter.matches(t) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(string(t.Category)), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}
