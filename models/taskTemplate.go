package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskTemplate describes a recurring or one-off work item attached to shifts.
// BonusAmount/PenaltyAmount are stored POSITIVE (or null); the sign convention
// lives in the ledger write path, not here.
type TaskTemplate struct {
	ID            int    `gorm:"primary_key" json:"id"`
	OwnerId       string `gorm:"index;size:64;not null" json:"owner_id"`
	Code          string `gorm:"size:64;not null" json:"code"`
	Title         string `gorm:"size:255;not null" json:"title"`
	IsMandatory   *bool  `gorm:"not null;default:false" json:"is_mandatory"`
	RequiresMedia *bool  `gorm:"not null;default:false" json:"requires_media"`
	BonusAmount   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"bonus_amount"`
	PenaltyAmount *decimal.Decimal `gorm:"type:decimal(20,4)" json:"penalty_amount"`
	IsActive      *bool  `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TaskTemplate) TableName() string { return "task_templates" }

func (t *TaskTemplate) Mandatory() bool {
	return t.IsMandatory != nil && *t.IsMandatory
}

func (t *TaskTemplate) NeedsMedia() bool {
	return t.RequiresMedia != nil && *t.RequiresMedia
}

// HasBonus reports a configured positive bonus.
func (t *TaskTemplate) HasBonus() bool {
	return t.BonusAmount != nil && t.BonusAmount.IsPositive()
}

// HasPenalty reports a configured positive penalty.
func (t *TaskTemplate) HasPenalty() bool {
	return t.PenaltyAmount != nil && t.PenaltyAmount.IsPositive()
}
