package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/utils"
	"gorm.io/gorm"
)

func integrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires mysql)")
	}
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		t.Fatal("config.GetDB returned nil")
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Seeds one closed shift (20 min late, owner rule fines 50) plus a completed
// bonus task, runs the job twice over the same window and asserts the second
// pass creates nothing: re-running reconciliation must be a no-op.
func TestReconcile_SecondRunCreatesNothing(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	ownerId := fmt.Sprintf("it-owner-%d", time.Now().UnixNano())

	object := models.WorkObject{OwnerId: ownerId, Name: "it-object"}
	if err := db.Create(&object).Error; err != nil {
		t.Fatalf("seed object: %v", err)
	}

	lateRule := models.Rule{
		OwnerId:   ownerId,
		Code:      "late-it",
		Scope:     models.RuleScopeLate,
		Priority:  10,
		Condition: `[{"field":"minutes_late","operator":"gt","value":15}]`,
		Action:    `{"kind":"late_penalty","amount":"50"}`,
		IsActive:  utils.NewTrue(),
	}
	if err := db.Create(&lateRule).Error; err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	closedAt := time.Now().UTC().Truncate(time.Second)
	planned := closedAt.Add(-9 * time.Hour)
	shift := models.Shift{
		OwnerId:      ownerId,
		EmployeeId:   1,
		ObjectId:     object.ID,
		Status:       models.ShiftStatusCompleted,
		PlannedStart: utils.NewTime(planned),
		StartTime:    utils.NewTime(planned.Add(20 * time.Minute)),
		EndTime:      utils.NewTime(planned.Add(8*time.Hour + 20*time.Minute)),
		HourlyRate:   decimal.NewFromInt(10),
		ClosedAt:     utils.NewTime(closedAt),
	}
	if err := db.Create(&shift).Error; err != nil {
		t.Fatalf("seed shift: %v", err)
	}

	bonus := decimal.NewFromInt(300)
	template := models.TaskTemplate{
		OwnerId:     ownerId,
		Code:        "photo-report",
		Title:       "Photo report",
		BonusAmount: &bonus,
		IsActive:    utils.NewTrue(),
	}
	if err := db.Create(&template).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	taskEntry := models.TaskEntry{
		OwnerId:     ownerId,
		ShiftId:     shift.ID,
		TemplateId:  template.ID,
		EmployeeId:  1,
		IsCompleted: utils.NewTrue(),
		CompletedAt: utils.NewTime(closedAt),
	}
	if err := db.Create(&taskEntry).Error; err != nil {
		t.Fatalf("seed task entry: %v", err)
	}

	job := NewReconcileJob(db, config.GetLogger())
	from := closedAt.Add(-time.Hour)
	to := closedAt.Add(time.Hour)

	first, err := job.RunScoped(ctx, ownerId, from, to)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Errored != 0 {
		t.Fatalf("first run errored %d times", first.Errored)
	}
	// base_pay + late_penalty + task_bonus.
	if first.Created != 3 {
		t.Fatalf("first run created %d rows, want 3", first.Created)
	}

	var penalty models.Adjustment
	if err := db.Where("shift_id = ? AND kind = ?", shift.ID, models.AdjustmentKindLatePenalty).
		First(&penalty).Error; err != nil {
		t.Fatalf("load late penalty: %v", err)
	}
	if !penalty.Amount.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("late penalty = %s, want -50 (rule amount, negated)", penalty.Amount)
	}

	countRows := func() int64 {
		var count int64
		if err := db.Model(&models.Adjustment{}).Where("owner_id = ?", ownerId).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		return count
	}
	before := countRows()

	second, err := job.RunScoped(ctx, ownerId, from, to)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Created != 0 {
		t.Fatalf("second run created %d rows, want 0", second.Created)
	}
	if second.Skipped == 0 {
		t.Fatal("second run should report skips for the existing rows")
	}
	if after := countRows(); after != before {
		t.Fatalf("row count changed across re-run: %d -> %d", before, after)
	}
}
