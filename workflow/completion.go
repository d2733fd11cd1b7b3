package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/utils"
	"gorm.io/gorm"
)

// ErrMediaRequired is returned when the template demands photo proof and the
// caller supplied none. The entry stays incomplete; the bot shows an
// immediate "send a photo first" message and does not retry automatically.
var ErrMediaRequired = errors.New("completion requires media proof")

// CompletionProof carries whatever the employee attached when marking the
// task done. PhotoBase64 comes straight from the bot's photo download.
type CompletionProof struct {
	PhotoBase64 string `json:"photo_base64"`
	Note        string `json:"note"`
}

// CompleteTask is the ONLY write path to task_entries.is_completed.
// Idempotent: a second call for an already-completed entry returns it
// unchanged and does not re-append proof media.
func CompleteTask(ctx context.Context, db *gorm.DB, logger *logrus.Logger, entryId int, proof *CompletionProof) (*models.TaskEntry, error) {
	var entry models.TaskEntry
	if err := db.WithContext(ctx).First(&entry, entryId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if entry.Completed() {
		return &entry, nil
	}

	var template models.TaskTemplate
	if err := db.WithContext(ctx).First(&template, entry.TemplateId).Error; err != nil {
		config.LogError(logger, "completion.go", "CompleteTask", "load template", entry.TemplateId, err)
		return nil, err
	}

	if template.NeedsMedia() && (proof == nil || proof.PhotoBase64 == "") {
		return nil, ErrMediaRequired
	}

	var mediaJSON *string
	if proof != nil && proof.PhotoBase64 != "" {
		upload, err := utils.UploadProofPhoto(ctx, entry.ID, proof.PhotoBase64)
		if err != nil {
			config.LogError(logger, "completion.go", "CompleteTask", "upload proof", entry.ID, err)
			return nil, err
		}
		media, err := json.Marshal([]*utils.ProofUpload{upload})
		if err != nil {
			return nil, err
		}
		s := string(media)
		mediaJSON = &s
	}

	now := time.Now().UTC()
	// Guarded update: only flips entries that are still incomplete, so two
	// concurrent calls cannot double-write proof media.
	res := db.WithContext(ctx).Model(&models.TaskEntry{}).
		Where("id = ? AND is_completed = 0", entry.ID).
		Updates(map[string]interface{}{
			"is_completed":     true,
			"completed_at":     &now,
			"completion_media": mediaJSON,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if err := db.WithContext(ctx).First(&entry, entry.ID).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// IsTaskOverdue reports whether the entry missed its window: still incomplete
// after its shift reached a terminal state. Used by the bot's reminder flow
// and by reconciliation logging.
func IsTaskOverdue(entry *models.TaskEntry, shift *models.Shift) bool {
	if entry.Completed() {
		return false
	}
	return shift != nil && shift.Status.Closed()
}
