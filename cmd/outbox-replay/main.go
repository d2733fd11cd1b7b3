package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
)

// Reverts DEAD (or stuck FAILED) outbox records to PENDING so the dispatcher
// picks them up again. Attempt counters are reset; run this after fixing the
// underlying publish problem, not instead of fixing it.
func main() {
	ownerID := flag.String("owner-id", "", "Optional: replay only one owner's records.")
	recordID := flag.Int("record-id", 0, "Optional: replay one specific record.")
	includeFailed := flag.Bool("include-failed", false, "Also reset FAILED records (not just DEAD).")
	dryRun := flag.Bool("dry-run", false, "Only print how many records would be reset.")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	statuses := []string{models.OutboxPublishStatusDead}
	if *includeFailed {
		statuses = append(statuses, models.OutboxPublishStatusFailed)
	}

	q := db.Model(&models.AdjustmentEventRecord{}).Where("publish_status IN ?", statuses)
	if strings.TrimSpace(*ownerID) != "" {
		q = q.Where("owner_id = ?", strings.TrimSpace(*ownerID))
	}
	if *recordID > 0 {
		q = q.Where("id = ?", *recordID)
	}

	if *dryRun {
		var count int64
		if err := q.Count(&count).Error; err != nil {
			fmt.Fprintf(os.Stderr, "count failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("would reset %d record(s) to PENDING\n", count)
		return
	}

	res := q.Updates(map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusPending,
		"publish_attempts":   0,
		"last_publish_error": nil,
		"next_attempt_at":    nil,
		"locked_at":          nil,
		"locked_by":          nil,
	})
	if res.Error != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", res.Error)
		os.Exit(1)
	}
	fmt.Printf("reset %d record(s) to PENDING\n", res.RowsAffected)
}
