package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/workflow"
)

// Re-scores a historical window of closed shifts. Safe to run against live
// data: every posting goes through the guarded create path, so shifts already
// scored just count as skipped. Never touches the scheduled job's watermark.
func main() {
	ownerID := flag.String("owner-id", "", "Optional: backfill only one owner. If empty, backfills all owners.")
	from := flag.String("from", "", "Start date (YYYY-MM-DD), required.")
	to := flag.String("to", "", "Optional: end date (YYYY-MM-DD). Defaults to now.")
	budgetMin := flag.Int("budget-minutes", 60, "Run budget in minutes; the tool stops cleanly when exhausted.")
	flag.Parse()

	start := strings.TrimSpace(*from)
	if start == "" {
		fmt.Fprintln(os.Stderr, "-from is required (YYYY-MM-DD)")
		os.Exit(1)
	}
	fromTime, err := time.Parse("2006-01-02", start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from: %v\n", err)
		os.Exit(1)
	}
	toTime := time.Now().UTC()
	if end := strings.TrimSpace(*to); end != "" {
		toTime, err = time.Parse("2006-01-02", end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to: %v\n", err)
			os.Exit(1)
		}
		// End date is inclusive.
		toTime = toTime.Add(24 * time.Hour)
	}

	ctx := context.Background()
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

	job := workflow.NewReconcileJob(db, config.GetLogger())
	job.MaxRunDuration = time.Duration(*budgetMin) * time.Minute

	stats, err := job.RunScoped(ctx, strings.TrimSpace(*ownerID), fromTime, toTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill failed: %v\n", err)
		if stats != nil {
			printStats(stats)
		}
		os.Exit(1)
	}
	printStats(stats)
	if stats.BudgetExhausted {
		fmt.Println("budget exhausted before window end; re-run with the same -from to finish")
	}
}

func printStats(stats *workflow.ReconcileStats) {
	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))
}
