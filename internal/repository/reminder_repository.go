package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskdeck/internal/model"
)

// ReminderRepository is the notification ledger: one row per (task, due occurrence).
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Notified reports whether a reminder was already sent for this due occurrence.
func (r *ReminderRepository) Notified(ctx context.Context, taskID model.TaskID, due time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ReminderRecord{}).
		Where("task_id = ? AND due_unix = ?", int64(taskID), due.Unix()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup reminder: %w", err)
	}
	return count > 0, nil
}

// MarkNotified records the notification. Recording the same occurrence twice is a no-op.
func (r *ReminderRepository) MarkNotified(ctx context.Context, taskID model.TaskID, due, at time.Time) error {
	rec := model.ReminderRecord{
		TaskID:     int64(taskID),
		DueUnix:    due.Unix(),
		NotifiedAt: at.UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}

// LastNotifiedAt returns when the task was last reminded about, if ever.
func (r *ReminderRepository) LastNotifiedAt(ctx context.Context, taskID model.TaskID) (time.Time, bool, error) {
	var rec model.ReminderRecord
	res := r.db.WithContext(ctx).Where("task_id = ?", int64(taskID)).
		Order("notified_at DESC").Limit(1).Find(&rec)
	if res.Error != nil {
		return time.Time{}, false, fmt.Errorf("lookup reminder: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return time.Time{}, false, nil
	}
	return rec.NotifiedAt, true, nil
}

// PruneBefore drops ledger rows for occurrences due before cutoff.
func (r *ReminderRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("due_unix < ?", cutoff.Unix()).Delete(&model.ReminderRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune reminders: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Clear removes the whole ledger; used on logout.
func (r *ReminderRepository) Clear(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.ReminderRecord{}).Error; err != nil {
		return fmt.Errorf("clear reminders: %w", err)
	}
	return nil
}
