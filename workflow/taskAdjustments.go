package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/rules"
	"github.com/staffprobot/payroll_backend/utils"
	"gorm.io/gorm"
)

// processTaskEntries adjudicates every task entry of one closed shift inside
// the caller's transaction. An entry error rolls the whole shift back; the
// shift is the atomic posting unit and the job retries it as one.
func processTaskEntries(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, shift *models.Shift) (*shiftResult, error) {
	res := &shiftResult{}
	entries, err := models.EntriesForShift(tx, shift.ID)
	if err != nil {
		return res, err
	}
	for _, entry := range entries {
		if err := processTaskEntry(ctx, tx, logger, res, shift, entry); err != nil {
			return res, err
		}
	}
	return res, nil
}

// processTaskEntry applies the adjudication table to one entry:
//
//	completed, bonus configured      -> task_bonus
//	completed, only penalty set      -> task_completed_zero (amount 0 marker)
//	incomplete, mandatory + penalty  -> task_penalty
//	anything else                    -> no row
//
// An entry whose template has been deleted is flagged needs_review and skipped
// on this and every future run; it never silently produces an amount.
func processTaskEntry(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, res *shiftResult, shift *models.Shift, entry *models.TaskEntry) error {
	if utils.DereferencePtr(entry.NeedsReview) {
		res.Skipped++
		return nil
	}

	var template models.TaskTemplate
	if err := tx.First(&template, entry.TemplateId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			config.LogError(logger, "taskAdjustments.go", "processTaskEntry", "template missing", entry.ID, err)
			res.Skipped++
			return tx.Model(&models.TaskEntry{}).
				Where("id = ?", entry.ID).
				Update("needs_review", true).Error
		}
		return err
	}

	kind, amount, ok := adjudicateTask(entry, &template)
	if !ok {
		return nil
	}

	// Owner rules may override the template amount for this task code.
	facts := rules.Facts{
		"template_code": template.Code,
		"is_completed":  entry.Completed(),
		"is_mandatory":  template.Mandatory(),
	}
	action, matched, err := rules.EvaluateForOwner(tx, logger, shift.OwnerId, models.RuleScopeTask, facts)
	if err != nil {
		return err
	}
	if matched && kind != models.AdjustmentKindTaskCompletedZero {
		if action.Amount.IsZero() {
			return nil
		}
		amount = action.Amount
	}

	adj := newAdjustment(shift, kind, amount,
		fmt.Sprintf("task %s: %s", template.Code, kind))
	adj.TaskEntryId = utils.NewInt(entry.ID)
	created, err := postAdjustment(ctx, tx, adj)
	if err != nil {
		return err
	}
	tally(res, created)
	return nil
}

// adjudicateTask is the pure decision table, separated out so it is testable
// without a database.
func adjudicateTask(entry *models.TaskEntry, template *models.TaskTemplate) (models.AdjustmentKind, decimal.Decimal, bool) {
	if entry.Completed() {
		if template.HasBonus() {
			return models.AdjustmentKindTaskBonus, *template.BonusAmount, true
		}
		if template.HasPenalty() {
			// Zero marker: records that the configured penalty was avoided,
			// and occupies the entry's unique slot so nothing can double-post.
			return models.AdjustmentKindTaskCompletedZero, decimal.Zero, true
		}
		return "", decimal.Zero, false
	}
	if template.Mandatory() && template.HasPenalty() {
		return models.AdjustmentKindTaskPenalty, *template.PenaltyAmount, true
	}
	return "", decimal.Zero, false
}
