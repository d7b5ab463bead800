package feedsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextFetchTime_EmptySample(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.True(t, nextFetchTime(nil, nil, now).Equal(now))
}

func TestNextFetchTime_SingleEntry(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stored := []time.Time{now.Add(-time.Hour)}

	// One entry yields a single delta (the gap to now), so the deviation is
	// zero and the candidate is last + gap = now.
	next := nextFetchTime(nil, stored, now)
	require.True(t, next.Equal(now))
}

func TestNextFetchTime_UniformCadence(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	interval := 2 * time.Hour

	// Entries exactly interval apart, the newest exactly interval ago: all
	// deltas equal, deviation zero, candidate = last + interval = now.
	var stored []time.Time
	for i := 5; i >= 1; i-- {
		stored = append(stored, now.Add(-time.Duration(i)*interval))
	}

	next := nextFetchTime(nil, stored, now)
	require.True(t, next.Equal(now), "got %v", next)
}

func TestNextFetchTime_QuietFeedCapped(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// A feed silent for months backs off, but never more than the cap.
	stored := []time.Time{
		now.AddDate(0, -3, 0),
		now.AddDate(0, -2, 0),
	}

	next := nextFetchTime(nil, stored, now)
	require.False(t, next.After(now.Add(12*time.Hour)))
	require.False(t, next.Before(now))
}

func TestNextFetchTime_FlooredByDeviation(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// A very bursty feed: the floor keeps the next poll at least one
	// standard deviation out.
	stored := []time.Time{
		now.Add(-10 * time.Hour),
		now.Add(-time.Minute),
		now.Add(-30 * time.Second),
	}

	next := nextFetchTime(nil, stored, now)
	require.True(t, next.After(now))
}

func TestNextFetchTime_ExcludedTimesJoinSample(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// Excluded timestamps are sorted in even when handed over out of order.
	excluded := []time.Time{
		now.Add(-5 * time.Hour),
		now.Add(-9 * time.Hour),
	}
	stored := []time.Time{now.Add(-2 * time.Hour)}

	withExcluded := nextFetchTime(excluded, stored, now)
	withoutExcluded := nextFetchTime(nil, stored, now)
	require.False(t, withExcluded.Equal(withoutExcluded))
	require.False(t, withExcluded.Before(now))
	require.False(t, withExcluded.After(now.Add(12*time.Hour)))
}
