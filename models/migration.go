package models

import "gorm.io/gorm"

// Migrate runs AutoMigrate for every table the payroll core owns. Shift,
// WorkObject, TaskTemplate and TaskEntry are shared with the bot/web side;
// the canonical schema lives here so the guard indexes exist everywhere.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&WorkObject{},
		&Shift{},
		&Rule{},
		&TaskTemplate{},
		&TaskEntry{},
		&Adjustment{},
		&CancellationReason{},
		&JobWatermark{},
		&ReconcileRun{},
		&AdjustmentEventRecord{},
	)
}
