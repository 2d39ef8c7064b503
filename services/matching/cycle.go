package matching

import (
	"fmt"
	"time"
)

// Cycle presets accepted by CycleFromPreset.
const (
	PresetThisCycle     = "this_cycle"
	PresetLastCycle     = "last_cycle"
	PresetLast7Days     = "last_7_days"
	PresetLast30Days    = "last_30_days"
	PresetQuarterToDate = "quarter_to_date"
	PresetYearToDate    = "year_to_date"
)

// Cycle windows are inclusive on both ends. Bounds are kept at millisecond
// precision, the resolution the ledger stores timestamps at.
const cyclePrecision = time.Millisecond

// CycleFromPreset resolves a named window relative to now. Cycles are calendar
// months in now's location.
func CycleFromPreset(preset string, now time.Time) (time.Time, time.Time, error) {
	y, m, _ := now.Date()
	loc := now.Location()
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, loc)

	var start, end time.Time
	switch preset {
	case PresetThisCycle:
		start, end = monthStart, now
	case PresetLastCycle:
		start = monthStart.AddDate(0, -1, 0)
		end = monthStart.Add(-cyclePrecision)
	case PresetLast7Days:
		start, end = now.AddDate(0, 0, -7), now
	case PresetLast30Days:
		start, end = now.AddDate(0, 0, -30), now
	case PresetQuarterToDate:
		quarter := (int(m) - 1) / 3
		start, end = time.Date(y, time.Month(quarter*3+1), 1, 0, 0, 0, 0, loc), now
	case PresetYearToDate:
		start, end = time.Date(y, time.January, 1, 0, 0, 0, 0, loc), now
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidCycle, preset)
	}
	return normalizeCycle(start, end)
}

func normalizeCycle(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start and end are required", ErrInvalidCycle)
	}
	start, end = start.UTC().Truncate(cyclePrecision), end.UTC().Truncate(cyclePrecision)
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidCycle,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}
