package feedsync

import (
	"math"
	"sort"
	"time"
)

// maxBackoff caps the next poll at twelve hours out, bounding runaway
// backoff for feeds that have gone quiet.
const maxBackoff = 12 * time.Hour

// nextFetchTime infers the feed's cadence from observed inter-arrival
// deltas and returns the next poll time.
//
// The sample is: timestamps excluded by the purge window this cycle
// (sorted ascending), then the stored entries' last-updated timestamps
// (already ascending), then now. With n deltas of mean m and sample
// standard deviation s (population correction n/(n-1), zero for n <= 1):
//
//	candidate = last + m + 2s/(n+1)
//	next      = clamp(candidate, now + s, now + 12h)
//
// The floor keeps us from polling faster than the observed jitter; the cap
// bounds backoff. last is the newest entry timestamp, not now.
func nextFetchTime(excluded []time.Time, stored []time.Time, now time.Time) time.Time {
	sample := make([]time.Time, 0, len(excluded)+len(stored))
	sample = append(sample, excluded...)
	sort.Slice(sample, func(i, j int) bool { return sample[i].Before(sample[j]) })
	sample = append(sample, stored...)

	if len(sample) == 0 {
		return now
	}

	last := sample[len(sample)-1]

	var deltas []float64
	for i := 1; i < len(sample); i++ {
		deltas = append(deltas, sample[i].Sub(sample[i-1]).Seconds())
	}
	// Give the window something to grow on when the feed has been idle
	// since its newest entry.
	if gap := now.Sub(last).Seconds(); gap > 0 {
		deltas = append(deltas, gap)
	}

	n := len(deltas)
	if n == 0 {
		return now
	}

	var sum, sumSquares float64
	for _, d := range deltas {
		sum += d
		sumSquares += d * d
	}
	mean := sum / float64(n)

	stdev := 0.0
	if n > 1 {
		variance := (float64(n)*sumSquares - sum*sum) / (float64(n) * float64(n-1))
		if variance > 0 {
			stdev = math.Sqrt(variance)
		}
	}

	interval := mean + 2*stdev/float64(n+1)
	candidate := last.Add(secondsToDuration(interval))

	floor := now.Add(secondsToDuration(stdev))
	ceiling := now.Add(maxBackoff)

	if candidate.Before(floor) {
		candidate = floor
	}
	if candidate.After(ceiling) {
		candidate = ceiling
	}
	return candidate
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
