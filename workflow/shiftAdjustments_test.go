package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/staffprobot/payroll_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the scoring
// semantics: the sign convention, the legacy fallback math and the task
// decision table. Guarded creation against a real MySQL is covered by the
// integration tests.

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testShift() *models.Shift {
	return &models.Shift{ID: 41, OwnerId: "owner-1", EmployeeId: 7}
}

func TestNewAdjustment_SignConvention(t *testing.T) {
	cases := []struct {
		kind models.AdjustmentKind
		in   string
		want string
	}{
		{models.AdjustmentKindBasePay, "1200", "1200"},
		{models.AdjustmentKindLatePenalty, "500", "-500"},
		{models.AdjustmentKindCancellationFine, "1000", "-1000"},
		{models.AdjustmentKindTaskBonus, "300", "300"},
		{models.AdjustmentKindTaskPenalty, "200", "-200"},
		{models.AdjustmentKindTaskCompletedZero, "0", "0"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			adj := newAdjustment(testShift(), tc.kind, dec(tc.in), "")
			if !adj.Amount.Equal(dec(tc.want)) {
				t.Fatalf("amount = %s, want %s", adj.Amount, tc.want)
			}
		})
	}
}

func TestNewAdjustment_PenaltyInputAlreadyNegative(t *testing.T) {
	// Defensive normalization: a penalty amount is negated from its absolute
	// value, so a caller passing -500 still yields -500, never +500.
	adj := newAdjustment(testShift(), models.AdjustmentKindLatePenalty, dec("-500"), "")
	if !adj.Amount.Equal(dec("-500")) {
		t.Fatalf("amount = %s, want -500", adj.Amount)
	}
}

func TestNewAdjustment_KeyPlacement(t *testing.T) {
	shiftAdj := newAdjustment(testShift(), models.AdjustmentKindBasePay, dec("1"), "")
	if shiftAdj.ShiftId == nil || *shiftAdj.ShiftId != 41 {
		t.Fatalf("shift kind must carry shift_id, got %+v", shiftAdj.ShiftId)
	}
	if shiftAdj.TaskEntryId != nil {
		t.Fatal("shift kind must leave task_entry_id NULL")
	}

	taskAdj := newAdjustment(testShift(), models.AdjustmentKindTaskBonus, dec("1"), "")
	if taskAdj.ShiftId != nil {
		t.Fatal("task kind must leave shift_id NULL")
	}
}

func TestLegacyLatePenalty(t *testing.T) {
	obj := &models.WorkObject{
		LateThresholdMinutes: 10,
		LatePenaltyPerMinute: dec("50"),
	}
	cases := []struct {
		name    string
		minutes int
		want    string
	}{
		{"on time", 0, "0"},
		{"within threshold", 10, "0"},
		{"over threshold charges every minute", 12, "600"},
		{"way over", 60, "3000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := legacyLatePenalty(obj, tc.minutes)
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("legacyLatePenalty(%d) = %s, want %s", tc.minutes, got, tc.want)
			}
		})
	}

	if got := legacyLatePenalty(nil, 30); !got.IsZero() {
		t.Fatalf("nil object should score zero, got %s", got)
	}
}

func TestLegacyCancellationFine(t *testing.T) {
	obj := &models.WorkObject{
		ShortNoticeHours:  24,
		ShortNoticeFine:   dec("1000"),
		InvalidReasonFine: dec("500"),
	}
	cases := []struct {
		name        string
		noticeHours int
		reasonValid bool
		want        string
	}{
		{"valid reason waives everything", 1, true, "0"},
		{"short notice", 3, false, "1000"},
		{"enough notice but invalid reason", 48, false, "500"},
		{"boundary notice is not short", 24, false, "500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := legacyCancellationFine(obj, tc.noticeHours, tc.reasonValid)
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("legacyCancellationFine(%d, %v) = %s, want %s", tc.noticeHours, tc.reasonValid, got, tc.want)
			}
		})
	}
}
