package retention

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestRemainingDays(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	daysAgo := func(n int) time.Time { return now.Add(-time.Duration(n) * day) }

	tests := []struct {
		name    string
		size    int64
		created time.Time
		want    float64
	}{
		{name: "5MB at 30 days", size: 5_000_000, created: daysAgo(30), want: 0},
		{name: "5MB at 29 days", size: 5_000_000, created: daysAgo(29), want: 1},
		{name: "1MB is floored to 5MB", size: 1_000_000, created: now, want: 30},
		{name: "empty blob", size: 0, created: now, want: 30},
		{name: "150MB fresh", size: 150_000_000, created: now, want: 1},
		{name: "150MB one day old", size: 150_000_000, created: daysAgo(1), want: 0},
		{name: "10MB fresh", size: 10_000_000, created: now, want: 15},
		{name: "10MB at 20 days clamps to zero", size: 10_000_000, created: daysAgo(20), want: 0},
		{name: "fractional", size: 20_000_000, created: daysAgo(2), want: 5.5},
		{name: "future creation", size: 5_000_000, created: now.Add(48 * time.Hour), want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, RemainingDays(tt.size, tt.created, now), 1e-9)
		})
	}
}

func TestAgeCountsWholeDays(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	created := clock.Now()

	clock.Advance(23*time.Hour + 59*time.Minute)
	require.Equal(t, int64(0), AgeDays(created, clock.Now()))
	require.Equal(t, MaxDays, RemainingDays(1, created, clock.Now()))

	clock.Advance(time.Minute)
	require.Equal(t, int64(1), AgeDays(created, clock.Now()))

	clock.Advance(28 * day)
	require.Equal(t, int64(29), AgeDays(created, clock.Now()))
	require.False(t, Expired(5_000_000, created, clock.Now()))

	clock.Advance(day)
	require.True(t, Expired(5_000_000, created, clock.Now()))
}

func TestSizeMB(t *testing.T) {
	require.Equal(t, int64(0), SizeMB(999_999))
	require.Equal(t, int64(1), SizeMB(1_000_000))
	require.Equal(t, int64(150), SizeMB(150_000_000))
}
