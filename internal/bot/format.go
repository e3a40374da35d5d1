package bot

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"
	"unicode"

	"taskdeck/internal/model"
	"taskdeck/internal/view"
)

const (
	iconDefault   = "🟢"
	iconDue       = "⏳"
	iconOverdue   = "⚠️"
	iconDone      = "✅"
	iconRecurring = "♻️"
	dueLayout     = "2006-01-02 15:04"
)

func escape(s string) string {
	return html.EscapeString(s)
}

func formatTask(task model.Task, p view.Progress, now time.Time, loc *time.Location) string {
	var b strings.Builder

	icon := iconDefault
	switch {
	case task.Completed:
		icon = iconDone
	case task.Overdue(now):
		icon = iconOverdue
	case task.HasDueDate() && task.DueDate.Sub(now) <= 48*time.Hour:
		icon = iconDue
	}
	b.WriteString(fmt.Sprintf("%s <b>#%s</b> %s", icon, task.ID, escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf(" <i>(%s)</i>\n", categoryLabel(task.Category)))

	if task.HasDueDate() {
		d := task.DueDate.In(loc)
		b.WriteString(fmt.Sprintf("   ⏰ %s", d.Format(dueLayout)))
		if task.Overdue(now) {
			b.WriteString(" — <b>overdue</b>")
		}
		if label := task.ReminderLabel(); label != "" {
			b.WriteString(" · 🔔 " + label)
		}
		b.WriteByte('\n')
	}
	if task.Recurrence.Recurring() {
		b.WriteString(fmt.Sprintf("   %s %s\n", iconRecurring, task.Recurrence))
	}
	if p.Visible() {
		b.WriteString(fmt.Sprintf("   ☑️ %d/%d (%d%%)\n", p.Done, p.Total, p.Percent()))
	}
	return b.String()
}

func formatTaskList(tasks []model.Task, progress func(model.Task) view.Progress, filter view.StatusFilter, search string, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("📋 <b>Tasks</b>")
	if filter != view.FilterAll {
		b.WriteString(" · " + string(filter))
	}
	if search = strings.TrimSpace(search); search != "" {
		b.WriteString(fmt.Sprintf(" · “%s”", escape(search)))
	}
	b.WriteString("\n\n")

	if len(tasks) == 0 {
		b.WriteString("Nothing here. Add a task with /new.")
		return b.String()
	}
	for _, t := range tasks {
		b.WriteString(formatTask(t, progress(t), now, loc))
	}
	return strings.TrimSpace(b.String())
}

func formatTaskDetail(task model.Task, p view.Progress, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(formatTask(task, p, now, loc))
	if notes := strings.TrimSpace(task.Notes); notes != "" {
		b.WriteString(fmt.Sprintf("\n📝 %s\n", escape(notes)))
	}
	if task.Priority != "" {
		b.WriteString(fmt.Sprintf("Priority: %s\n", escape(task.Priority)))
	}
	if len(task.Subtasks) > 0 {
		b.WriteString("\n<b>Subtasks</b>\n")
		for i, sub := range task.Subtasks {
			mark := "☐"
			if sub.Completed || task.Completed {
				mark = "☑️"
			}
			b.WriteString(fmt.Sprintf("%d. %s %s\n", i+1, mark, escape(sub.Text)))
		}
	}
	return strings.TrimSpace(b.String())
}

func formatDashboard(agg view.Aggregates) string {
	var b strings.Builder
	b.WriteString("📊 <b>Dashboard</b>\n")
	b.WriteString(fmt.Sprintf("Total: %d · Completed: %d · Pending: %d\n\n", agg.Total, agg.Completed, agg.Pending))

	if agg.Empty() {
		b.WriteString("No Data")
		return b.String()
	}
	for _, s := range agg.Slices() {
		share := s.Sweep / (2 * math.Pi)
		b.WriteString(fmt.Sprintf("%s %s %d (%d%%)\n", categoryLabel(s.Category), bar(share, 10), s.Count, int(math.Round(share*100))))
	}
	return strings.TrimSpace(b.String())
}

func bar(share float64, width int) string {
	filled := int(math.Round(share * float64(width)))
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := normalizeTitle(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func categoryLabel(c model.Category) string {
	var icon string
	switch c.Display() {
	case model.CategoryWork:
		icon = "💼"
	case model.CategoryPersonal:
		icon = "🧩"
	case model.CategoryUrgent:
		icon = "🔥"
	case model.CategoryMedical:
		icon = "🩺"
	default:
		icon = "📁"
	}
	return icon + " " + c.Label()
}
