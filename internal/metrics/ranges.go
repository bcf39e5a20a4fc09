package metrics

import (
	"fmt"
	"time"
)

// Epoch is the floor of every all-time computation. Nothing in the system
// predates it.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Range presets accepted by ComputeRange.
const (
	Range30d    = "30d"
	Range60d    = "60d"
	Range90d    = "90d"
	Range6m     = "6m"
	Range1y     = "1y"
	RangeAll    = "all"
	RangeCustom = "custom"
)

// ComputeRange resolves a preset to a concrete [start, end] window ending at
// now. custom takes two date-only strings; the end date is widened to the
// last millisecond of that day. An unparseable date or end before start is a
// validation error, never silently clamped.
func ComputeRange(preset, customStart, customEnd string, now time.Time) (time.Time, time.Time, error) {
	switch preset {
	case Range30d:
		return now.AddDate(0, 0, -30), now, nil
	case Range60d:
		return now.AddDate(0, 0, -60), now, nil
	case Range90d:
		return now.AddDate(0, 0, -90), now, nil
	case Range6m:
		return now.AddDate(0, -6, 0), now, nil
	case Range1y:
		return now.AddDate(-1, 0, 0), now, nil
	case RangeAll:
		return Epoch, now, nil
	case RangeCustom:
		if customStart == "" || customEnd == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("custom range requires both start and end dates")
		}
		start, err := time.ParseInLocation("2006-01-02", customStart, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date '%s'", customStart)
		}
		end, err := time.ParseInLocation("2006-01-02", customEnd, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date '%s'", customEnd)
		}
		end = end.Add(24*time.Hour - time.Millisecond)
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("end date must be after start date")
		}
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown range preset '%s'", preset)
	}
}
