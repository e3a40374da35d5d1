package view

import (
	"math"

	"taskdeck/internal/model"
)

// Progress is the subtask completion of one task.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// ProgressOf counts completed subtasks. A completed parent counts all of them as done.
func ProgressOf(t model.Task) Progress {
	p := Progress{Total: len(t.Subtasks)}
	if t.Completed {
		p.Done = p.Total
		return p
	}
	for _, s := range t.Subtasks {
		if s.Completed {
			p.Done++
		}
	}
	return p
}

// Percent is rounded to the nearest integer; 0 when there are no subtasks.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(p.Done) / float64(p.Total)))
}

// Visible reports whether an indicator should be drawn at all.
func (p Progress) Visible() bool {
	return p.Total > 0
}
