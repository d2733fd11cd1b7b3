package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/utils"
)

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func entry(completed bool) *models.TaskEntry {
	e := &models.TaskEntry{ID: 9, ShiftId: 41, TemplateId: 3}
	if completed {
		e.IsCompleted = utils.NewTrue()
	} else {
		e.IsCompleted = utils.NewFalse()
	}
	return e
}

func TestAdjudicateTask(t *testing.T) {
	cases := []struct {
		name      string
		completed bool
		template  models.TaskTemplate
		wantKind  models.AdjustmentKind
		wantAmt   string
		wantRow   bool
	}{
		{
			name:      "completed with bonus",
			completed: true,
			template:  models.TaskTemplate{BonusAmount: decPtr("300")},
			wantKind:  models.AdjustmentKindTaskBonus,
			wantAmt:   "300",
			wantRow:   true,
		},
		{
			name:      "completed, only penalty configured, zero marker",
			completed: true,
			template:  models.TaskTemplate{PenaltyAmount: decPtr("200")},
			wantKind:  models.AdjustmentKindTaskCompletedZero,
			wantAmt:   "0",
			wantRow:   true,
		},
		{
			name:      "completed with bonus and penalty, bonus wins",
			completed: true,
			template:  models.TaskTemplate{BonusAmount: decPtr("300"), PenaltyAmount: decPtr("200")},
			wantKind:  models.AdjustmentKindTaskBonus,
			wantAmt:   "300",
			wantRow:   true,
		},
		{
			name:      "completed, nothing configured",
			completed: true,
			template:  models.TaskTemplate{},
			wantRow:   false,
		},
		{
			name:      "incomplete mandatory with penalty",
			completed: false,
			template:  models.TaskTemplate{IsMandatory: utils.NewTrue(), PenaltyAmount: decPtr("200")},
			wantKind:  models.AdjustmentKindTaskPenalty,
			wantAmt:   "200",
			wantRow:   true,
		},
		{
			name:      "incomplete optional with penalty",
			completed: false,
			template:  models.TaskTemplate{PenaltyAmount: decPtr("200")},
			wantRow:   false,
		},
		{
			name:      "incomplete mandatory without penalty",
			completed: false,
			template:  models.TaskTemplate{IsMandatory: utils.NewTrue()},
			wantRow:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, amount, ok := adjudicateTask(entry(tc.completed), &tc.template)
			if ok != tc.wantRow {
				t.Fatalf("row=%v, want %v", ok, tc.wantRow)
			}
			if !ok {
				return
			}
			if kind != tc.wantKind {
				t.Fatalf("kind = %s, want %s", kind, tc.wantKind)
			}
			if !amount.Equal(dec(tc.wantAmt)) {
				t.Fatalf("amount = %s, want %s", amount, tc.wantAmt)
			}
		})
	}
}

func TestIsTaskOverdue(t *testing.T) {
	closed := &models.Shift{Status: models.ShiftStatusCompleted}
	open := &models.Shift{Status: models.ShiftStatusActive}

	if !IsTaskOverdue(entry(false), closed) {
		t.Fatal("incomplete entry on a closed shift is overdue")
	}
	if IsTaskOverdue(entry(true), closed) {
		t.Fatal("completed entry is never overdue")
	}
	if IsTaskOverdue(entry(false), open) {
		t.Fatal("entry on a running shift is not overdue yet")
	}
}
