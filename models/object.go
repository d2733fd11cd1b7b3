package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkObject is the venue a shift is worked at (the bot/web side calls these
// "objects"). The static penalty columns are the pre-rules configuration and
// survive as the legacy fallback: when no rule matches, the reconciliation
// job scores against these fields instead.
type WorkObject struct {
	ID         int    `gorm:"primary_key" json:"id"`
	OwnerId    string `gorm:"index;size:64;not null" json:"owner_id"`
	Name       string `gorm:"size:255;not null" json:"name"`
	Timezone   string `gorm:"size:64" json:"timezone"`
	HourlyRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hourly_rate"`

	// Legacy late-arrival fields: no penalty below the threshold, then a flat
	// per-minute rate for every late minute.
	LateThresholdMinutes int             `gorm:"default:0" json:"late_threshold_minutes"`
	LatePenaltyPerMinute decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"late_penalty_per_minute"`

	// Legacy cancellation fields.
	ShortNoticeHours  int             `gorm:"default:0" json:"short_notice_hours"`
	ShortNoticeFine   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"short_notice_fine"`
	InvalidReasonFine decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"invalid_reason_fine"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WorkObject) TableName() string { return "work_objects" }
