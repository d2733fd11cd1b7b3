package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/staffprobot/payroll_backend/utils"
	"gorm.io/gorm"
)

// AdjustmentEventRecord is the transactional outbox for adjustment-created
// events: written inside the same DB transaction that creates the ledger row,
// published asynchronously by the outbox dispatcher after commit.
type AdjustmentEventRecord struct {
	ID            int    `gorm:"primary_key" json:"id"`
	OwnerId       string `gorm:"index;not null;size:64" json:"owner_id"`
	AdjustmentId  int    `gorm:"index;not null" json:"adjustment_id"`
	Payload       []byte `gorm:"type:mediumblob" json:"payload"`
	CorrelationId string `gorm:"size:64" json:"correlation_id"`

	PublishStatus    string     `gorm:"size:16;not null;default:PENDING;index" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	LastPublishError *string    `gorm:"size:1024" json:"last_publish_error"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:36" json:"locked_by"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:64" json:"pub_sub_message_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AdjustmentEventRecord) TableName() string { return "adjustment_event_records" }

// EnqueueAdjustmentEvent writes the outbox record inside the caller's
// transaction. It does NOT publish; the dispatcher does that after commit.
func EnqueueAdjustmentEvent(ctx context.Context, tx *gorm.DB, adj *Adjustment) error {
	payload, err := json.Marshal(adj)
	if err != nil {
		return err
	}
	record := AdjustmentEventRecord{
		OwnerId:       adj.OwnerId,
		AdjustmentId:  adj.ID,
		Payload:       payload,
		CorrelationId: correlationIdFromContextOrNew(ctx),
		PublishStatus: OutboxPublishStatusPending,
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
