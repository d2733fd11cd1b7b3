package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// JobWatermark persists the "last processed cutoff" per job so restarts
// neither replay arbitrarily far back nor skip data. Read at run start,
// advanced once at run end; never held across item processing.
type JobWatermark struct {
	ID          int       `gorm:"primary_key" json:"id"`
	JobName     string    `gorm:"size:64;not null;uniqueIndex" json:"job_name"`
	ProcessedTo time.Time `gorm:"not null" json:"processed_to"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (JobWatermark) TableName() string { return "job_watermarks" }

// GetWatermark returns the persisted cutoff, or fallback when the job has
// never run.
func GetWatermark(tx *gorm.DB, jobName string, fallback time.Time) (time.Time, error) {
	var wm JobWatermark
	err := tx.Where("job_name = ?", jobName).First(&wm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fallback, nil
		}
		return time.Time{}, err
	}
	return wm.ProcessedTo, nil
}

// AdvanceWatermark moves the cutoff forward, creating the row on first run.
// Never moves backwards: a concurrent run that finished a later window wins.
func AdvanceWatermark(tx *gorm.DB, jobName string, processedTo time.Time) error {
	res := tx.Model(&JobWatermark{}).
		Where("job_name = ? AND processed_to < ?", jobName, processedTo).
		Update("processed_to", processedTo)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// Row may not exist yet.
	var count int64
	if err := tx.Model(&JobWatermark{}).Where("job_name = ?", jobName).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	err := tx.Create(&JobWatermark{JobName: jobName, ProcessedTo: processedTo}).Error
	if err != nil && isDuplicateKeyErr(err) {
		return nil
	}
	return err
}
