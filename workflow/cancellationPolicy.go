package workflow

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"gorm.io/gorm"
)

const reasonCacheTTL = 5 * time.Minute

func reasonCacheKey(ownerId string) string {
	return fmt.Sprintf("cancellation_reasons:%s", ownerId)
}

// loadReasons returns the active reason set for an owner (owner rows plus
// globals), cached per owner. Cache misses fall through to the DB; a missing
// redis just means every call hits the DB.
func loadReasons(tx *gorm.DB, logger *logrus.Logger, ownerId string) ([]*models.CancellationReason, error) {
	var reasons []*models.CancellationReason
	found, err := config.GetRedisObject(reasonCacheKey(ownerId), &reasons)
	if err != nil {
		config.LogError(logger, "cancellationPolicy.go", "loadReasons", "redis get", ownerId, err)
	}
	if found {
		return reasons, nil
	}

	reasons, err = models.ActiveReasonsForOwner(tx, ownerId)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(reasonCacheKey(ownerId), reasons, reasonCacheTTL); err != nil {
		config.LogError(logger, "cancellationPolicy.go", "loadReasons", "redis set", ownerId, err)
	}
	return reasons, nil
}

// resolveReason picks the effective reason row for a code: the owner's own row
// when one exists, otherwise the global default. Nil when the code is unknown.
func resolveReason(reasons []*models.CancellationReason, ownerId string, code string) *models.CancellationReason {
	var global *models.CancellationReason
	for _, r := range reasons {
		if r.Code != code {
			continue
		}
		if r.OwnerId == ownerId && ownerId != "" {
			return r
		}
		if r.OwnerId == "" && global == nil {
			global = r
		}
	}
	return global
}

// IsReasonValid reports whether cancelling with the code counts as a valid
// cancellation for the owner. Unknown or empty codes are NOT valid: an
// unrecognized excuse never waives the fine.
func IsReasonValid(tx *gorm.DB, logger *logrus.Logger, ownerId string, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	reasons, err := loadReasons(tx, logger, ownerId)
	if err != nil {
		return false, err
	}
	r := resolveReason(reasons, ownerId, code)
	if r == nil {
		return false, nil
	}
	return r.Valid(), nil
}

// ListVisibleReasons returns the effective reason list the bot shows an
// employee: one row per code after owner overrides are applied.
func ListVisibleReasons(tx *gorm.DB, logger *logrus.Logger, ownerId string) ([]*models.CancellationReason, error) {
	reasons, err := loadReasons(tx, logger, ownerId)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(reasons))
	var visible []*models.CancellationReason
	for _, r := range reasons {
		if seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		visible = append(visible, r)
	}
	return visible, nil
}

// InvalidateReasonCache drops the cached set after an owner edits their
// reasons. Callers in the admin surface invoke this post-commit.
func InvalidateReasonCache(ownerId string) error {
	return config.RemoveRedisKey(reasonCacheKey(ownerId))
}
