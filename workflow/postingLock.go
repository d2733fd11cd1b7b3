package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireOwnerPostingLock serializes adjustment posting per owner across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB transaction that will do the posting.
func AcquireOwnerPostingLock(tx *gorm.DB, ownerId string) error {
	lockName := fmt.Sprintf("payroll_posting:%s", ownerId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 10)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for owner_id=%s", ownerId)
	}
	return nil
}

func ReleaseOwnerPostingLock(tx *gorm.DB, ownerId string) {
	lockName := fmt.Sprintf("payroll_posting:%s", ownerId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
