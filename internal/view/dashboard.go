package view

import (
	"math"

	"taskdeck/internal/model"
)

// CategoryCount is one bucket of the category distribution.
type CategoryCount struct {
	Category model.Category `json:"category"`
	Count    int            `json:"count"`
}

// Aggregates feed the dashboard counters and chart.
type Aggregates struct {
	Total      int             `json:"total"`
	Completed  int             `json:"completed"`
	Pending    int             `json:"pending"`
	ByCategory []CategoryCount `json:"by_category"`
}

// Slice is a pie chart segment, angles in radians starting at 0.
type Slice struct {
	Category model.Category `json:"category"`
	Count    int            `json:"count"`
	Start    float64        `json:"start"`
	Sweep    float64        `json:"sweep"`
}

// Aggregate counts tasks by status and by category. Categories are listed in
// model.Categories order, unknown values are folded into "other".
func Aggregate(tasks []model.Task) Aggregates {
	counts := make(map[model.Category]int, len(model.Categories))
	agg := Aggregates{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			agg.Completed++
		}
		counts[t.Category.Display()]++
	}
	agg.Pending = agg.Total - agg.Completed

	agg.ByCategory = make([]CategoryCount, 0, len(model.Categories))
	for _, c := range model.Categories {
		agg.ByCategory = append(agg.ByCategory, CategoryCount{Category: c, Count: counts[c]})
	}
	return agg
}

// Empty means there is nothing to chart; render the placeholder instead.
func (a Aggregates) Empty() bool {
	return a.Total == 0
}

// Slices converts the distribution into proportional segments, skipping empty categories.
func (a Aggregates) Slices() []Slice {
	if a.Empty() {
		return nil
	}
	var (
		out   []Slice
		start float64
	)
	for _, c := range a.ByCategory {
		if c.Count == 0 {
			continue
		}
		sweep := float64(c.Count) / float64(a.Total) * 2 * math.Pi
		out = append(out, Slice{Category: c.Category, Count: c.Count, Start: start, Sweep: sweep})
		start += sweep
	}
	return out
}
