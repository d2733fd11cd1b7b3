package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Shift rows are produced by the bot/web collaborators; the reconciliation
// job only reads them. ClosedAt is set when status transitions to a terminal
// value and drives window selection.
type Shift struct {
	ID           int         `gorm:"primary_key" json:"id"`
	OwnerId      string      `gorm:"index;size:64;not null" json:"owner_id"`
	EmployeeId   int         `gorm:"index;not null" json:"employee_id"`
	ObjectId     int         `gorm:"index;not null" json:"object_id"`
	Status       ShiftStatus `gorm:"size:16;not null;index" json:"status"`
	PlannedStart *time.Time  `json:"planned_start"`
	StartTime    *time.Time  `json:"start_time"`
	EndTime      *time.Time  `json:"end_time"`
	HourlyRate   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hourly_rate"`

	CancelledAt       *time.Time `json:"cancelled_at"`
	CancellationCode  string     `gorm:"size:64" json:"cancellation_code"`
	ClosedAt          *time.Time `gorm:"index" json:"closed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Shift) TableName() string { return "shifts" }

// MinutesLate returns whole minutes between planned and actual start,
// zero when the shift started on time or either timestamp is missing.
// Partial minutes round down: being 30 seconds late is not "1 minute late".
func (s *Shift) MinutesLate() int {
	if s.PlannedStart == nil || s.StartTime == nil {
		return 0
	}
	d := s.StartTime.Sub(*s.PlannedStart)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// HoursWorked returns the worked duration in decimal hours (4 dp), zero when
// the shift never started or never ended.
func (s *Shift) HoursWorked() decimal.Decimal {
	if s.StartTime == nil || s.EndTime == nil {
		return decimal.Zero
	}
	d := s.EndTime.Sub(*s.StartTime)
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(d.Hours()).Round(4)
}

// NoticeHours returns how many whole hours before the planned start the shift
// was cancelled. Zero when cancelled after the planned start or data missing.
func (s *Shift) NoticeHours() int {
	if s.PlannedStart == nil || s.CancelledAt == nil {
		return 0
	}
	d := s.PlannedStart.Sub(*s.CancelledAt)
	if d <= 0 {
		return 0
	}
	return int(d / time.Hour)
}

// ClosedShiftsInWindow selects shifts whose status went terminal inside the
// window, optionally scoped to one owner (ownerId "" = all). Windows overlap
// between runs on purpose; the existence guard makes re-selecting a shift
// harmless.
func ClosedShiftsInWindow(tx *gorm.DB, ownerId string, from, to time.Time, limit int) ([]*Shift, error) {
	var shifts []*Shift
	q := tx.
		Where("status IN ? AND closed_at IS NOT NULL AND closed_at >= ? AND closed_at < ?",
			[]ShiftStatus{ShiftStatusCompleted, ShiftStatusCancelled}, from, to).
		Order("closed_at ASC, id ASC")
	if ownerId != "" {
		q = q.Where("owner_id = ?", ownerId)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&shifts).Error
	return shifts, err
}
