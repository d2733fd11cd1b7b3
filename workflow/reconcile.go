package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const reconcileJobName = "adjustment_reconcile"

// ReconcileJob turns closed shifts into ledger rows. Safe to run concurrently
// with itself: the ledger's existence guard and unique indexes make every
// posting at-most-once, so overlapping windows and racing instances only cost
// wasted reads.
type ReconcileJob struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	// WindowOverlap is re-read behind the watermark each run, covering rows
	// whose closed_at landed just before the previous cutoff was taken.
	WindowOverlap time.Duration
	// InitialLookback bounds the first run ever (no watermark yet).
	InitialLookback time.Duration
	BatchSize       int
	// MaxRunDuration is the per-run budget. When exhausted the run stops
	// cleanly mid-window and the watermark is NOT advanced, so the next run
	// picks up the remainder.
	MaxRunDuration time.Duration
}

func NewReconcileJob(db *gorm.DB, logger *logrus.Logger) *ReconcileJob {
	return &ReconcileJob{
		DB:              db,
		Logger:          logger,
		WindowOverlap:   time.Hour,
		InitialLookback: 7 * 24 * time.Hour,
		BatchSize:       200,
		MaxRunDuration:  10 * time.Minute,
	}
}

// ReconcileStats is what one run reports (and persists as a ReconcileRun row).
type ReconcileStats struct {
	RunId           string    `json:"run_id"`
	WindowFrom      time.Time `json:"window_from"`
	WindowTo        time.Time `json:"window_to"`
	Processed       int       `json:"processed"`
	Created         int       `json:"created"`
	Skipped         int       `json:"skipped"`
	Errored         int       `json:"errored"`
	BudgetExhausted bool      `json:"budget_exhausted"`

	// EarliestErroredAt is the smallest closed_at among shifts that errored.
	// The watermark never advances past it, so errored shifts stay inside the
	// next run's window and get retried.
	EarliestErroredAt *time.Time `json:"earliest_errored_at,omitempty"`
}

func (s *ReconcileStats) noteError(closedAt *time.Time) {
	s.Errored++
	s.noteErroredAt(closedAt)
}

func (s *ReconcileStats) noteErroredAt(closedAt *time.Time) {
	if closedAt == nil {
		return
	}
	if s.EarliestErroredAt == nil || closedAt.Before(*s.EarliestErroredAt) {
		t := *closedAt
		s.EarliestErroredAt = &t
	}
}

// watermarkCutoff picks how far the watermark may advance after a run: the
// window end, capped at the earliest errored shift so that shift is
// re-selected next run (WindowOverlap re-reads behind the watermark on top).
func watermarkCutoff(windowEnd time.Time, stats *ReconcileStats) time.Time {
	if stats.EarliestErroredAt != nil && stats.EarliestErroredAt.Before(windowEnd) {
		return *stats.EarliestErroredAt
	}
	return windowEnd
}

// Run executes one scheduled pass over the watermark window, across all
// owners. The watermark only advances over fully covered ground: not at all
// when the budget ran out, and never past the earliest errored shift.
func (j *ReconcileJob) Run(ctx context.Context) (*ReconcileStats, error) {
	now := time.Now().UTC()
	watermark, err := models.GetWatermark(j.DB.WithContext(ctx), reconcileJobName, now.Add(-j.InitialLookback))
	if err != nil {
		return nil, err
	}
	from := watermark.Add(-j.WindowOverlap)
	if earliest := now.Add(-j.InitialLookback); from.Before(earliest) {
		from = earliest
	}

	// Rollout allowlist: empty means one pass over all owners.
	owners := config.ReconcileForOwners()
	if len(owners) == 0 {
		owners = []string{""}
	}

	stats := &ReconcileStats{WindowFrom: from, WindowTo: now}
	for _, ownerId := range owners {
		s, err := j.runWindow(ctx, ownerId, from, now)
		if s != nil {
			stats.RunId = s.RunId
			stats.Processed += s.Processed
			stats.Created += s.Created
			stats.Skipped += s.Skipped
			stats.Errored += s.Errored
			stats.BudgetExhausted = stats.BudgetExhausted || s.BudgetExhausted
			if s.EarliestErroredAt != nil {
				stats.noteErroredAt(s.EarliestErroredAt)
			}
		}
		if err != nil {
			return stats, err
		}
	}
	if !stats.BudgetExhausted {
		cutoff := watermarkCutoff(now, stats)
		if err := models.AdvanceWatermark(j.DB.WithContext(ctx), reconcileJobName, cutoff); err != nil {
			config.LogError(j.Logger, "reconcile.go", "Run", "advance watermark", cutoff, err)
		}
	}
	return stats, nil
}

// RunScoped reprocesses an explicit window, optionally for one owner. Used by
// the manual ops trigger, the shift-closed push handler and the backfill tool.
// Never touches the watermark.
func (j *ReconcileJob) RunScoped(ctx context.Context, ownerId string, from, to time.Time) (*ReconcileStats, error) {
	return j.runWindow(ctx, ownerId, from, to)
}

func (j *ReconcileJob) runWindow(ctx context.Context, ownerId string, from, to time.Time) (*ReconcileStats, error) {
	ctx, span := otel.Tracer("workflow").Start(ctx, "reconcile.runWindow")
	defer span.End()

	started := time.Now()
	deadline := started.Add(j.MaxRunDuration)
	stats := &ReconcileStats{
		RunId:      uuid.NewString(),
		WindowFrom: from,
		WindowTo:   to,
	}
	span.SetAttributes(
		attribute.String("run_id", stats.RunId),
		attribute.String("owner_id", ownerId),
	)

	objects := map[int]*models.WorkObject{}

	for {
		shifts, err := models.ClosedShiftsInWindow(j.DB.WithContext(ctx), ownerId, from, to, j.BatchSize)
		if err != nil {
			j.persistRun(ownerId, stats, started)
			return stats, err
		}
		if len(shifts) == 0 {
			break
		}

		var advanced bool
		for _, shift := range shifts {
			if time.Now().After(deadline) || ctx.Err() != nil {
				stats.BudgetExhausted = true
				j.persistRun(ownerId, stats, started)
				return stats, ctx.Err()
			}
			if err := j.processOne(ctx, shift, objects, stats); err != nil {
				stats.noteError(shift.ClosedAt)
				config.LogError(j.Logger, "reconcile.go", "runWindow", "process shift", shift.ID, err)
			}
			stats.Processed++
			// Pagination by closed_at: the next batch starts after this shift.
			if shift.ClosedAt != nil && shift.ClosedAt.After(from) {
				from = *shift.ClosedAt
				advanced = true
			}
		}
		if len(shifts) < j.BatchSize {
			break
		}
		if !advanced {
			// A batch of identical closed_at values larger than BatchSize
			// cannot paginate; bail out rather than loop forever.
			config.LogWarn(j.Logger, "reconcile.go", "runWindow", "pagination stalled", from, "batch did not advance window cursor")
			break
		}
	}

	j.persistRun(ownerId, stats, started)
	return stats, nil
}

// processOne scores one shift and its task entries in a single short
// transaction, serialized per owner with a DB advisory lock. The ledger write
// and its outbox record commit or roll back together.
func (j *ReconcileJob) processOne(ctx context.Context, shift *models.Shift, objects map[int]*models.WorkObject, stats *ReconcileStats) error {
	object, ok := objects[shift.ObjectId]
	if !ok {
		var o models.WorkObject
		err := j.DB.WithContext(ctx).First(&o, shift.ObjectId).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			object = &o
		}
		objects[shift.ObjectId] = object
	}

	return j.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireOwnerPostingLock(tx, shift.OwnerId); err != nil {
			return err
		}
		defer ReleaseOwnerPostingLock(tx, shift.OwnerId)

		shiftRes, err := processShift(ctx, tx, j.Logger, shift, object)
		if err != nil {
			return err
		}
		taskRes, err := processTaskEntries(ctx, tx, j.Logger, shift)
		if err != nil {
			return err
		}
		stats.Created += shiftRes.Created + taskRes.Created
		stats.Skipped += shiftRes.Skipped + taskRes.Skipped
		return nil
	})
}

func (j *ReconcileJob) persistRun(ownerId string, stats *ReconcileStats, started time.Time) {
	run := models.ReconcileRun{
		RunId:           stats.RunId,
		OwnerId:         ownerId,
		WindowFrom:      stats.WindowFrom,
		WindowTo:        stats.WindowTo,
		Processed:       stats.Processed,
		Created:         stats.Created,
		Skipped:         stats.Skipped,
		Errored:         stats.Errored,
		BudgetExhausted: &stats.BudgetExhausted,
		DurationMs:      time.Since(started).Milliseconds(),
	}
	if err := j.DB.Create(&run).Error; err != nil {
		config.LogError(j.Logger, "reconcile.go", "persistRun", "insert run row", stats.RunId, err)
	}
}

// RunLoop drives scheduled runs on a ticker. The redis lock keeps multiple
// instances from running the same tick; when redis is absent every instance
// runs and the existence guard absorbs the duplication.
func (j *ReconcileJob) RunLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lock, err := utils.OwnerLock(ctx, "scheduled", "reconcile_run", interval)
		if err != nil {
			if err == redislock.ErrNotObtained {
				continue
			}
			config.LogError(j.Logger, "reconcile.go", "RunLoop", "obtain lock", nil, err)
			continue
		}

		stats, err := j.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			config.LogError(j.Logger, "reconcile.go", "RunLoop", "run", stats, err)
		}

		if lock != nil {
			if err := lock.Release(ctx); err != nil && err != redislock.ErrLockNotHeld {
				config.LogError(j.Logger, "reconcile.go", "RunLoop", "release lock", nil, err)
			}
		}
	}
}
