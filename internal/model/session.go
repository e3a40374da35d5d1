package model

import "time"

// Session stores the bearer credential of the signed-in user. There is at most one row.
type Session struct {
	ID        uint `gorm:"primaryKey"`
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReminderRecord remembers that a reminder went out for one due occurrence of a task.
type ReminderRecord struct {
	ID         uint  `gorm:"primaryKey"`
	TaskID     int64 `gorm:"uniqueIndex:idx_reminder_task_due"`
	DueUnix    int64 `gorm:"uniqueIndex:idx_reminder_task_due"`
	NotifiedAt time.Time
	CreatedAt  time.Time
}
