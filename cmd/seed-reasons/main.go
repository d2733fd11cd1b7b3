package main

import (
	"fmt"
	"os"

	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/utils"
)

// Seeds the global cancellation reason defaults and the baseline global
// rules. Idempotent: existing (owner_id, code) rows are left untouched, so it
// is safe to run on every deploy.
func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if err := models.Migrate(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}

	reasons := []models.CancellationReason{
		{Code: "sick", Title: "Sick leave", TreatedAsValid: utils.NewTrue(), RequiresDocument: utils.NewTrue(), IsActive: utils.NewTrue()},
		{Code: "family_emergency", Title: "Family emergency", TreatedAsValid: utils.NewTrue(), RequiresDocument: utils.NewFalse(), IsActive: utils.NewTrue()},
		{Code: "transport", Title: "Transport failure", TreatedAsValid: utils.NewFalse(), RequiresDocument: utils.NewFalse(), IsActive: utils.NewTrue()},
		{Code: "personal", Title: "Personal reasons", TreatedAsValid: utils.NewFalse(), RequiresDocument: utils.NewFalse(), IsActive: utils.NewTrue()},
	}
	var seeded int
	for i := range reasons {
		var count int64
		if err := db.Model(&models.CancellationReason{}).
			Where("owner_id = '' AND code = ?", reasons[i].Code).
			Count(&count).Error; err != nil {
			fmt.Fprintf(os.Stderr, "reason %s: %v\n", reasons[i].Code, err)
			os.Exit(1)
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&reasons[i]).Error; err != nil {
			fmt.Fprintf(os.Stderr, "reason %s: %v\n", reasons[i].Code, err)
			os.Exit(1)
		}
		seeded++
	}
	fmt.Printf("seeded %d cancellation reason(s)\n", seeded)

	rules := []models.Rule{
		{
			Code:      "late-default",
			Scope:     models.RuleScopeLate,
			Priority:  0,
			Condition: `[{"field":"minutes_late","operator":"gt","value":15}]`,
			Action:    `{"kind":"late_penalty","amount":"500"}`,
			IsActive:  utils.NewTrue(),
		},
		{
			Code:      "cancellation-short-notice",
			Scope:     models.RuleScopeCancellation,
			Priority:  0,
			Condition: `[{"field":"notice_hours","operator":"lt","value":24},{"field":"reason_treated_as_valid","operator":"eq","value":false}]`,
			Action:    `{"kind":"cancellation_fine","amount":"1000"}`,
			IsActive:  utils.NewTrue(),
		},
	}
	seeded = 0
	for i := range rules {
		// Sanity-check the JSON before it ever reaches the evaluator.
		if _, err := rules[i].Parse(); err != nil {
			fmt.Fprintf(os.Stderr, "rule %s: %v\n", rules[i].Code, err)
			os.Exit(1)
		}
		var count int64
		if err := db.Model(&models.Rule{}).
			Where("owner_id = '' AND scope = ? AND code = ?", rules[i].Scope, rules[i].Code).
			Count(&count).Error; err != nil {
			fmt.Fprintf(os.Stderr, "rule %s: %v\n", rules[i].Code, err)
			os.Exit(1)
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&rules[i]).Error; err != nil {
			fmt.Fprintf(os.Stderr, "rule %s: %v\n", rules[i].Code, err)
			os.Exit(1)
		}
		seeded++
	}
	fmt.Printf("seeded %d global rule(s)\n", seeded)
}
