package model

import "encoding/json"

// TaskPatch is a partial update. Every non-nil field carries the complete replacement
// value for that field (e.g. the whole subtask list), never a diff.
type TaskPatch struct {
	Title           *string
	Notes           *string
	DueDate         *Timestamp
	ClearDueDate    bool
	ReminderMinutes *int
	Category        *Category
	Priority        *string
	Recurrence      *Recurrence
	Tags            *[]string
	Completed       *bool
	Subtasks        *[]Subtask
}

// PatchFromFields turns a form payload into a patch that replaces every editable field.
func PatchFromFields(f TaskFields) TaskPatch {
	title, notes, priority := f.Title, f.Notes, f.Priority
	category, recurrence := f.Category, f.Recurrence
	subtasks := append([]Subtask{}, f.Subtasks...)
	p := TaskPatch{
		Title:           &title,
		Notes:           &notes,
		ReminderMinutes: f.ReminderMinutes,
		Category:        &category,
		Priority:        &priority,
		Recurrence:      &recurrence,
		Subtasks:        &subtasks,
	}
	if f.DueDate != nil && !f.DueDate.IsZero() {
		due := *f.DueDate
		p.DueDate = &due
	} else {
		p.ClearDueDate = true
	}
	if f.Tags != nil {
		tags := append([]string(nil), f.Tags...)
		p.Tags = &tags
	}
	return p
}

// Empty reports whether the patch touches nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Notes == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.ReminderMinutes == nil && p.Category == nil && p.Priority == nil &&
		p.Recurrence == nil && p.Tags == nil && p.Completed == nil && p.Subtasks == nil
}

// Apply writes the patched fields into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.ReminderMinutes != nil {
		minutes := *p.ReminderMinutes
		t.ReminderMinutes = &minutes
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Subtasks != nil {
		t.Subtasks = append([]Subtask{}, (*p.Subtasks)...)
	}
}

// MarshalJSON emits only the touched keys; ClearDueDate becomes an explicit null.
func (p TaskPatch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Notes != nil {
		m["notes"] = *p.Notes
	}
	switch {
	case p.ClearDueDate:
		m["due_date"] = nil
	case p.DueDate != nil:
		m["due_date"] = *p.DueDate
	}
	if p.ReminderMinutes != nil {
		m["reminder_minutes"] = *p.ReminderMinutes
	}
	if p.Category != nil {
		m["category"] = *p.Category
	}
	if p.Priority != nil {
		m["priority"] = *p.Priority
	}
	if p.Recurrence != nil {
		m["recurrence"] = *p.Recurrence
	}
	if p.Tags != nil {
		m["tags"] = *p.Tags
	}
	if p.Completed != nil {
		m["completed"] = *p.Completed
	}
	if p.Subtasks != nil {
		m["subtasks"] = *p.Subtasks
	}
	return json.Marshal(m)
}
