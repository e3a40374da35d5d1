package cache

import (
	"sync"
	"testing"

	"taskdeck/internal/model"
)

func ids(tasks []model.Task) []model.TaskID {
	out := make([]model.TaskID, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestReplaceKeepsServerOrder(t *testing.T) {
	c := New()
	c.Replace([]model.Task{{ID: 3, Title: "c"}, {ID: 1, Title: "a"}, {ID: 2, Title: "b"}})

	got := ids(c.Snapshot())
	want := []model.TaskID{3, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	c.Replace([]model.Task{{ID: 9}})
	if c.Len() != 1 {
		t.Errorf("Replace must drop old entries, len=%d", c.Len())
	}
}

func TestReplaceDeduplicatesIDs(t *testing.T) {
	c := New()
	c.Replace([]model.Task{{ID: 1, Title: "old"}, {ID: 2}, {ID: 1, Title: "new"}})
	if c.Len() != 2 {
		t.Fatalf("expected 2 unique tasks, got %d", c.Len())
	}
	got, _ := c.Get(1)
	if got.Title != "new" {
		t.Errorf("expected last value to win, got %q", got.Title)
	}
}

func TestPatchAbsentIsNoop(t *testing.T) {
	c := New()
	c.Replace([]model.Task{{ID: 1}})
	done := true
	if c.Patch(42, model.TaskPatch{Completed: &done}) {
		t.Error("patching an unknown id must report false")
	}
	if c.Len() != 1 {
		t.Error("patching an unknown id must not insert")
	}
}

func TestPatchReplacesSubtasks(t *testing.T) {
	c := New()
	c.Replace([]model.Task{{ID: 1, Subtasks: []model.Subtask{{Text: "x"}, {Text: "y"}}}})

	subs := []model.Subtask{{Text: "x", Completed: true}, {Text: "y"}}
	if !c.Patch(1, model.TaskPatch{Subtasks: &subs}) {
		t.Fatal("patch reported no-op")
	}
	subs[1].Completed = true

	got, _ := c.Get(1)
	if !got.Subtasks[0].Completed || got.Subtasks[1].Completed {
		t.Errorf("unexpected subtasks %+v", got.Subtasks)
	}
}

func TestReadsAreCopies(t *testing.T) {
	c := New()
	c.Replace([]model.Task{{ID: 1, Subtasks: []model.Subtask{{Text: "x"}}}})

	snap := c.Snapshot()
	snap[0].Subtasks[0].Completed = true
	snap[0].Title = "mutated"

	got, _ := c.Get(1)
	if got.Title == "mutated" || got.Subtasks[0].Completed {
		t.Error("snapshot mutation leaked into the cache")
	}
}

func TestUpdateAbort(t *testing.T) {
	c := New()
	c.Replace([]model.Task{{ID: 1, Title: "a"}})
	changed := c.Update(1, func(task *model.Task) bool {
		task.Title = "b"
		return false
	})
	if changed {
		t.Error("aborted update reported a change")
	}
	got, _ := c.Get(1)
	if got.Title != "a" {
		t.Errorf("aborted update leaked: %q", got.Title)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	c.Replace([]model.Task{{ID: 1}, {ID: 2}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.Replace([]model.Task{{ID: 1}, {ID: 2}})
		}()
		go func() {
			defer wg.Done()
			c.Update(1, func(task *model.Task) bool {
				task.Completed = !task.Completed
				return true
			})
		}()
		go func() {
			defer wg.Done()
			_ = c.Snapshot()
		}()
	}
	wg.Wait()
	if c.Len() != 2 {
		t.Errorf("expected 2 tasks, got %d", c.Len())
	}
}

func TestClear(t *testing.T) {
	c := New()
	c.Replace([]model.Task{{ID: 1}})
	c.Clear()
	if c.Len() != 0 || len(c.Snapshot()) != 0 {
		t.Error("Clear must empty the cache")
	}
	if _, ok := c.Get(1); ok {
		t.Error("Get after Clear must miss")
	}
}
