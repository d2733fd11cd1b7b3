package workflow

import (
	"testing"
	"time"

	"github.com/staffprobot/payroll_backend/utils"
)

// NOTE: DB-free. Window selection and guarded posting against a real MySQL
// are covered by the integration tests; these pin the watermark arithmetic
// so a run with errors can never advance past an unretried shift.

func TestWatermarkCutoff_CleanRunAdvancesToWindowEnd(t *testing.T) {
	end := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stats := &ReconcileStats{Processed: 10, Created: 4}
	if got := watermarkCutoff(end, stats); !got.Equal(end) {
		t.Fatalf("cutoff = %s, want window end %s", got, end)
	}
}

func TestWatermarkCutoff_CappedAtEarliestErroredShift(t *testing.T) {
	end := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	erroredAt := end.Add(-3 * time.Hour)

	stats := &ReconcileStats{}
	stats.noteError(utils.NewTime(erroredAt))
	if got := watermarkCutoff(end, stats); !got.Equal(erroredAt) {
		t.Fatalf("cutoff = %s, want earliest errored closed_at %s", got, erroredAt)
	}
}

func TestNoteError_TracksMinimumClosedAt(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stats := &ReconcileStats{}

	stats.noteError(utils.NewTime(base.Add(-time.Hour)))
	stats.noteError(utils.NewTime(base.Add(-5 * time.Hour)))
	stats.noteError(utils.NewTime(base.Add(-2 * time.Hour)))
	stats.noteError(nil) // shift without closed_at must not reset the minimum

	if stats.Errored != 4 {
		t.Fatalf("errored = %d, want 4", stats.Errored)
	}
	want := base.Add(-5 * time.Hour)
	if stats.EarliestErroredAt == nil || !stats.EarliestErroredAt.Equal(want) {
		t.Fatalf("earliest = %v, want %s", stats.EarliestErroredAt, want)
	}
}

func TestWatermarkCutoff_ErrorAfterWindowEndIgnored(t *testing.T) {
	// An errored shift at or past the window end cannot pull the cutoff
	// forward; the cutoff is a cap, never an extension.
	end := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stats := &ReconcileStats{}
	stats.noteError(utils.NewTime(end.Add(time.Minute)))
	if got := watermarkCutoff(end, stats); !got.Equal(end) {
		t.Fatalf("cutoff = %s, want window end %s", got, end)
	}
}
