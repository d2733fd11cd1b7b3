package models

import (
	"time"

	"gorm.io/gorm"
)

// CancellationReason maps a reason code to whether cancelling with it counts
// as valid (no fine). OwnerId "" rows are seeded global defaults; an owner
// row with the same code overrides the global one.
type CancellationReason struct {
	ID               int       `gorm:"primary_key" json:"id"`
	OwnerId          string    `gorm:"size:64;uniqueIndex:idx_cancellation_reasons_owner_code" json:"owner_id"`
	Code             string    `gorm:"size:64;not null;uniqueIndex:idx_cancellation_reasons_owner_code" json:"code"`
	Title            string    `gorm:"size:255" json:"title"`
	TreatedAsValid   *bool     `gorm:"not null;default:false" json:"treated_as_valid"`
	RequiresDocument *bool     `gorm:"not null;default:false" json:"requires_document"`
	IsActive         *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CancellationReason) TableName() string { return "cancellation_reasons" }

func (r *CancellationReason) Valid() bool {
	return r.TreatedAsValid != nil && *r.TreatedAsValid
}

func (r *CancellationReason) Active() bool {
	return r.IsActive != nil && *r.IsActive
}

// ActiveReasonsForOwner loads the owner's rows plus the globals, owner rows
// first so resolution can pick the first match per code.
func ActiveReasonsForOwner(tx *gorm.DB, ownerId string) ([]*CancellationReason, error) {
	var reasons []*CancellationReason
	err := tx.
		Where("is_active = 1 AND owner_id IN ?", []string{ownerId, ""}).
		Order("owner_id DESC, code ASC").
		Find(&reasons).Error
	return reasons, err
}
