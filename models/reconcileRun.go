package models

import (
	"time"

	"gorm.io/gorm"
)

// ReconcileRun is one row per reconciliation run for the ops dashboard.
type ReconcileRun struct {
	ID              int       `gorm:"primary_key" json:"id"`
	RunId           string    `gorm:"size:36;not null;uniqueIndex" json:"run_id"`
	OwnerId         string    `gorm:"size:64;index" json:"owner_id"` // "" = all owners (scheduled run)
	WindowFrom      time.Time `gorm:"not null" json:"window_from"`
	WindowTo        time.Time `gorm:"not null" json:"window_to"`
	Processed       int       `gorm:"not null;default:0" json:"processed"`
	Created         int       `gorm:"not null;default:0" json:"created"`
	Skipped         int       `gorm:"not null;default:0" json:"skipped"`
	Errored         int       `gorm:"not null;default:0" json:"errored"`
	BudgetExhausted *bool     `gorm:"not null;default:false" json:"budget_exhausted"`
	DurationMs      int64     `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReconcileRun) TableName() string { return "reconcile_runs" }

// RecentRuns lists the newest runs for the ops endpoint.
func RecentRuns(tx *gorm.DB, limit int) ([]*ReconcileRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*ReconcileRun
	err := tx.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
