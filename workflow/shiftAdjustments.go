package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/rules"
	"github.com/staffprobot/payroll_backend/utils"
	"gorm.io/gorm"
)

// newAdjustment is the ONE place the sign convention is applied: rule and
// template amounts arrive positive, penalty kinds are negated here. Every
// ledger row the reconciliation job writes goes through this constructor.
func newAdjustment(shift *models.Shift, kind models.AdjustmentKind, amount decimal.Decimal, description string) *models.Adjustment {
	if kind.IsPenalty() {
		amount = amount.Abs().Neg()
	}
	adj := &models.Adjustment{
		OwnerId:     shift.OwnerId,
		EmployeeId:  shift.EmployeeId,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		IsApplied:   utils.NewFalse(),
	}
	if kind.IsShiftKind() {
		adj.ShiftId = utils.NewInt(shift.ID)
	}
	return adj
}

// postAdjustment writes one ledger row through the guarded create path and
// enqueues the outbox event only when a row was actually created. Returns
// whether the row was created (false = already existed, skip).
func postAdjustment(ctx context.Context, tx *gorm.DB, adj *models.Adjustment) (bool, error) {
	created, err := models.CreateAdjustmentOnce(tx, adj)
	if err != nil || !created {
		return false, err
	}
	if err := models.EnqueueAdjustmentEvent(ctx, tx, adj); err != nil {
		return false, err
	}
	return true, nil
}

// shiftResult tallies one shift's worth of posting outcomes.
type shiftResult struct {
	Created int
	Skipped int
}

// processShift scores one closed shift inside the caller's transaction:
// base pay and late penalty for completed shifts, cancellation fine for
// cancelled ones. Rules win; the object's static columns are the fallback
// when no rule matches.
func processShift(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, shift *models.Shift, object *models.WorkObject) (*shiftResult, error) {
	res := &shiftResult{}

	switch shift.Status {
	case models.ShiftStatusCompleted:
		if err := postBasePay(ctx, tx, res, shift, object); err != nil {
			return res, err
		}
		if err := postLatePenalty(ctx, tx, logger, res, shift, object); err != nil {
			return res, err
		}
	case models.ShiftStatusCancelled:
		if err := postCancellationFine(ctx, tx, logger, res, shift, object); err != nil {
			return res, err
		}
	}

	return res, nil
}

func postBasePay(ctx context.Context, tx *gorm.DB, res *shiftResult, shift *models.Shift, object *models.WorkObject) error {
	rate := shift.HourlyRate
	if rate.IsZero() && object != nil {
		rate = object.HourlyRate
	}
	hours := shift.HoursWorked()
	amount := hours.Mul(rate).Round(4)

	adj := newAdjustment(shift, models.AdjustmentKindBasePay, amount,
		fmt.Sprintf("base pay: %s h x %s", hours.String(), rate.String()))
	created, err := postAdjustment(ctx, tx, adj)
	if err != nil {
		return err
	}
	tally(res, created)
	return nil
}

func postLatePenalty(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, res *shiftResult, shift *models.Shift, object *models.WorkObject) error {
	minutesLate := shift.MinutesLate()
	if minutesLate == 0 {
		return nil
	}

	facts := rules.Facts{
		"minutes_late": minutesLate,
		"object_id":    shift.ObjectId,
	}
	action, matched, err := rules.EvaluateForOwner(tx, logger, shift.OwnerId, models.RuleScopeLate, facts)
	if err != nil {
		return err
	}

	var amount decimal.Decimal
	var desc string
	if matched {
		// Amount zero means the winning rule waives the penalty.
		if action.Amount.IsZero() {
			return nil
		}
		amount = action.Amount
		desc = fmt.Sprintf("late %d min (rule)", minutesLate)
	} else {
		if config.RulesOnlyScoring() {
			return nil
		}
		amount = legacyLatePenalty(object, minutesLate)
		if amount.IsZero() {
			return nil
		}
		desc = fmt.Sprintf("late %d min", minutesLate)
	}

	adj := newAdjustment(shift, models.AdjustmentKindLatePenalty, amount, desc)
	created, err := postAdjustment(ctx, tx, adj)
	if err != nil {
		return err
	}
	tally(res, created)
	return nil
}

func postCancellationFine(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, res *shiftResult, shift *models.Shift, object *models.WorkObject) error {
	reasonValid, err := IsReasonValid(tx, logger, shift.OwnerId, shift.CancellationCode)
	if err != nil {
		return err
	}
	noticeHours := shift.NoticeHours()

	facts := rules.Facts{
		"notice_hours":            noticeHours,
		"reason_treated_as_valid": reasonValid,
		"object_id":               shift.ObjectId,
	}
	action, matched, err := rules.EvaluateForOwner(tx, logger, shift.OwnerId, models.RuleScopeCancellation, facts)
	if err != nil {
		return err
	}

	var amount decimal.Decimal
	var desc string
	if matched {
		if action.Amount.IsZero() {
			return nil
		}
		amount = action.Amount
		desc = fmt.Sprintf("cancellation, notice %d h (rule)", noticeHours)
	} else {
		if config.RulesOnlyScoring() {
			return nil
		}
		amount = legacyCancellationFine(object, noticeHours, reasonValid)
		if amount.IsZero() {
			return nil
		}
		desc = fmt.Sprintf("cancellation, notice %d h", noticeHours)
	}

	adj := newAdjustment(shift, models.AdjustmentKindCancellationFine, amount, desc)
	created, err := postAdjustment(ctx, tx, adj)
	if err != nil {
		return err
	}
	tally(res, created)
	return nil
}

// legacyLatePenalty scores a late arrival against the object's static
// columns: nothing at or below the threshold, then per-minute for EVERY late
// minute once over it.
func legacyLatePenalty(object *models.WorkObject, minutesLate int) decimal.Decimal {
	if object == nil || minutesLate <= 0 {
		return decimal.Zero
	}
	if minutesLate <= object.LateThresholdMinutes {
		return decimal.Zero
	}
	return object.LatePenaltyPerMinute.Mul(decimal.NewFromInt(int64(minutesLate)))
}

// legacyCancellationFine scores a cancellation against the object's static
// columns. A valid reason waives everything; otherwise short notice draws the
// short-notice fine and an invalid reason with enough notice draws the
// invalid-reason fine.
func legacyCancellationFine(object *models.WorkObject, noticeHours int, reasonValid bool) decimal.Decimal {
	if object == nil || reasonValid {
		return decimal.Zero
	}
	if noticeHours < object.ShortNoticeHours {
		return object.ShortNoticeFine
	}
	return object.InvalidReasonFine
}

func tally(res *shiftResult, created bool) {
	if created {
		res.Created++
	} else {
		res.Skipped++
	}
}
