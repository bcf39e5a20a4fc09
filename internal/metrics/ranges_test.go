package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRangePresets(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		preset    string
		wantStart time.Time
	}{
		{Range30d, now.AddDate(0, 0, -30)},
		{Range60d, now.AddDate(0, 0, -60)},
		{Range90d, now.AddDate(0, 0, -90)},
		{Range6m, now.AddDate(0, -6, 0)},
		{Range1y, now.AddDate(-1, 0, 0)},
		{RangeAll, Epoch},
	}

	for _, tc := range cases {
		start, end, err := ComputeRange(tc.preset, "", "", now)
		require.NoErrorf(t, err, "preset %s", tc.preset)
		assert.Equal(t, tc.wantStart, start)
		assert.Equal(t, now, end)
	}
}

func TestComputeRangeCustom(t *testing.T) {
	now := time.Now().UTC()

	start, end, err := ComputeRange(RangeCustom, "2026-01-01", "2026-01-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), start)
	// End widens to the last millisecond of the day
	assert.Equal(t, time.Date(2026, time.January, 31, 23, 59, 59, 999000000, time.UTC), end)
}

func TestComputeRangeCustomValidation(t *testing.T) {
	now := time.Now().UTC()

	_, _, err := ComputeRange(RangeCustom, "", "2026-01-31", now)
	assert.Error(t, err)

	_, _, err = ComputeRange(RangeCustom, "2026-01-01", "", now)
	assert.Error(t, err)

	_, _, err = ComputeRange(RangeCustom, "not-a-date", "2026-01-31", now)
	assert.Error(t, err)

	_, _, err = ComputeRange(RangeCustom, "2026-01-01", "31/01/2026", now)
	assert.Error(t, err)

	// End before start
	_, _, err = ComputeRange(RangeCustom, "2026-02-01", "2026-01-01", now)
	assert.Error(t, err)

	// Same day is valid: end is widened past start
	_, _, err = ComputeRange(RangeCustom, "2026-01-01", "2026-01-01", now)
	assert.NoError(t, err)

	_, _, err = ComputeRange("14d", "", "", now)
	assert.Error(t, err)
}
