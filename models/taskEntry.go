package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskEntry is one template occurrence on one shift. Exactly one entry exists
// per (shift, template); the unique index backs that invariant. is_completed
// is the single source of truth for completion and is only ever written by
// workflow.CompleteTask.
type TaskEntry struct {
	ID              int        `gorm:"primary_key" json:"id"`
	OwnerId         string     `gorm:"index;size:64;not null" json:"owner_id"`
	ShiftId         int        `gorm:"not null;uniqueIndex:idx_task_entries_shift_template" json:"shift_id"`
	TemplateId      int        `gorm:"not null;uniqueIndex:idx_task_entries_shift_template;index" json:"template_id"`
	EmployeeId      int        `gorm:"index;not null" json:"employee_id"`
	IsCompleted     *bool      `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	CompletionMedia *string    `gorm:"type:text" json:"completion_media"`

	// NeedsReview flags entries the reconciliation job skipped permanently
	// (e.g. the template was deleted underneath them). Flagged, not dropped,
	// so an operator can find them.
	NeedsReview *bool `gorm:"not null;default:false" json:"needs_review"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TaskEntry) TableName() string { return "task_entries" }

// Completed is the single accessor every consumer (completion flow,
// reconciliation, reporting) reads. Do not read IsCompleted directly.
func (e *TaskEntry) Completed() bool {
	return e.IsCompleted != nil && *e.IsCompleted
}

// EntriesForShift loads the task entries belonging to one shift.
func EntriesForShift(tx *gorm.DB, shiftId int) ([]*TaskEntry, error) {
	var entries []*TaskEntry
	err := tx.Where("shift_id = ?", shiftId).Order("id ASC").Find(&entries).Error
	return entries, err
}
