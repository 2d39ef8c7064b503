package services

import (
	"context"
	"log"
	"time"

	"github.com/HSouheill/barrim_matching/services/matching"
)

// CycleRunner posts a whole cycle for every eligible member.
type CycleRunner interface {
	RunCycle(ctx context.Context, cycleStart, cycleEnd time.Time) (*matching.CycleSummary, error)
}

// RunCycleScheduler posts the previous calendar cycle once at start and then
// every interval until ctx is done. Re-running a posted cycle is a no-op, so
// every tick can safely retry members that failed earlier.
func RunCycleScheduler(ctx context.Context, runner CycleRunner, interval time.Duration, now func() time.Time) {
	if interval <= 0 {
		log.Printf("Matching scheduler disabled: interval %s is not positive", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		runScheduledCycle(ctx, runner, now().UTC())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runScheduledCycle(ctx context.Context, runner CycleRunner, now time.Time) {
	start, end, err := matching.CycleFromPreset(matching.PresetLastCycle, now)
	if err != nil {
		log.Printf("Matching scheduler: %v", err)
		return
	}

	summary, err := runner.RunCycle(ctx, start, end)
	if err != nil {
		log.Printf("Matching scheduler: cycle %s to %s failed: %v", start.Format(time.RFC3339), end.Format(time.RFC3339), err)
		return
	}
	log.Printf("Matching scheduler: cycle %s to %s: %d candidates, %d posted, %d duplicates, %d skipped, %d failed",
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		summary.Candidates, summary.Posted, summary.Duplicates, summary.Skipped, summary.Failed)
}
