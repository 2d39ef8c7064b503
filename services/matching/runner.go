package matching

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// CycleSummary counts the outcomes of a RunCycle pass.
type CycleSummary struct {
	CycleStart time.Time `json:"cycleStart"`
	CycleEnd   time.Time `json:"cycleEnd"`
	Candidates int       `json:"candidates"`
	Posted     int64     `json:"posted"`
	Duplicates int64     `json:"duplicates"`
	Skipped    int64     `json:"skipped"`
	Failed     int64     `json:"failed"`
}

// RunCycle posts the matching bonus of every member whose rank can earn one.
// Members are posted concurrently; a failure for one member does not stop the
// others. Running a cycle again posts nothing that was already posted.
func (e *Engine) RunCycle(ctx context.Context, cycleStart, cycleEnd time.Time) (*CycleSummary, error) {
	start, end, err := normalizeCycle(cycleStart, cycleEnd)
	if err != nil {
		return nil, err
	}

	policies, err := e.policies.ActivePolicies(ctx)
	if err != nil {
		return nil, computationFailed("list rank policies", err)
	}
	var ranks []string
	for _, p := range policies {
		if p.MatchingDepth > 0 {
			ranks = append(ranks, p.RankName)
		}
	}

	summary := &CycleSummary{CycleStart: start, CycleEnd: end}
	if len(ranks) == 0 {
		return summary, nil
	}

	members, err := e.directory.MemberIDsWithRanks(ctx, ranks)
	if err != nil {
		return nil, computationFailed("list candidate members", err)
	}
	summary.Candidates = len(members)

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, id := range members {
		id := id
		g.Go(func() error {
			if ctx.Err() != nil {
				atomic.AddInt64(&summary.Failed, 1)
				return nil
			}
			res, err := e.PostMatchingBonus(ctx, id, start, end)
			switch {
			case err != nil:
				log.Printf("matching: cycle post for %s failed: %v", id.Hex(), err)
				atomic.AddInt64(&summary.Failed, 1)
			case res.Duplicate:
				atomic.AddInt64(&summary.Duplicates, 1)
			case res.Success:
				atomic.AddInt64(&summary.Posted, 1)
			default:
				atomic.AddInt64(&summary.Skipped, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("matching: cycle %s to %s: %d candidates, %d posted, %d duplicates, %d skipped, %d failed",
		start.Format(time.RFC3339), end.Format(time.RFC3339), summary.Candidates,
		summary.Posted, summary.Duplicates, summary.Skipped, summary.Failed)
	return summary, ctx.Err()
}
