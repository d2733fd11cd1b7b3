package models

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Adjustment is one signed payroll correction. Rows are created exactly once
// per source event and never mutated afterwards except for the is_applied
// flip when a payroll period is finalized.
//
// Uniqueness invariant:
//   - shift kinds (base_pay, late_penalty, cancellation_fine): at most one row
//     per (shift_id, kind); such rows leave task_entry_id NULL.
//   - task kinds (task_bonus, task_penalty, task_completed_zero): at most one
//     row per task_entry_id; such rows leave shift_id NULL (the entry carries
//     the shift linkage).
//
// The existence guard below is the primary defense; the unique indexes are
// the backstop for concurrent runs. MySQL ignores NULLs in unique keys, so
// the two key spaces do not collide.
type Adjustment struct {
	ID          int            `gorm:"primary_key" json:"id"`
	OwnerId     string         `gorm:"index;size:64;not null" json:"owner_id"`
	EmployeeId  int            `gorm:"index;not null" json:"employee_id"`
	ShiftId     *int           `gorm:"uniqueIndex:idx_adjustments_shift_kind" json:"shift_id"`
	TaskEntryId *int           `gorm:"uniqueIndex:idx_adjustments_task_entry" json:"task_entry_id"`
	Kind        AdjustmentKind `gorm:"size:32;not null;uniqueIndex:idx_adjustments_shift_kind" json:"kind"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Description string         `gorm:"size:512" json:"description"`
	CreatedBy   *int           `json:"created_by"`
	IsApplied   *bool          `gorm:"not null;default:false" json:"is_applied"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Adjustment) TableName() string { return "adjustments" }

var ErrDuplicateAdjustment = errors.New("adjustment already exists")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// AdjustmentExistsForShift reports whether ANY row of the kind exists for the
// shift. Count, not First: historical data may already hold duplicates and
// the guard must degrade to "skip if >= 1", never raise.
func AdjustmentExistsForShift(tx *gorm.DB, shiftId int, kind AdjustmentKind) (bool, error) {
	var count int64
	err := tx.Model(&Adjustment{}).
		Where("shift_id = ? AND kind = ?", shiftId, kind).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count >= 1, nil
}

// AdjustmentExistsForTaskEntry reports whether ANY task-kind row exists for
// the entry, regardless of which task kind was written.
func AdjustmentExistsForTaskEntry(tx *gorm.DB, taskEntryId int) (bool, error) {
	var count int64
	err := tx.Model(&Adjustment{}).
		Where("task_entry_id = ?", taskEntryId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count >= 1, nil
}

// CreateAdjustmentOnce is the single write path every producer (reconcile
// job, manual admin actions) must go through: existence guard first, then
// insert, treating a duplicate-key error from a concurrent writer as a skip
// rather than a failure. Returns whether a row was actually created.
func CreateAdjustmentOnce(tx *gorm.DB, adj *Adjustment) (bool, error) {
	if adj.Kind.IsShiftKind() {
		if adj.ShiftId == nil {
			return false, errors.New("shift adjustment without shift_id")
		}
		exists, err := AdjustmentExistsForShift(tx, *adj.ShiftId, adj.Kind)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	} else {
		if adj.TaskEntryId == nil {
			return false, errors.New("task adjustment without task_entry_id")
		}
		exists, err := AdjustmentExistsForTaskEntry(tx, *adj.TaskEntryId)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	if err := tx.Create(adj).Error; err != nil {
		if isDuplicateKeyErr(err) {
			// Lost the race against a concurrent run; the row exists now.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkAdjustmentsApplied flips is_applied for a finalized payroll period.
// The only legal mutation of ledger rows.
func MarkAdjustmentsApplied(tx *gorm.DB, ownerId string, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&Adjustment{}).
		Where("owner_id = ? AND id IN ?", ownerId, ids).
		Update("is_applied", true).Error
}
