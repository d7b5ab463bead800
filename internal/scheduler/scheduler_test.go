package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedloop/internal/model"
	"feedloop/internal/scheduler"
)

type stubFeedSource struct {
	mu    sync.Mutex
	feeds []model.Feed
	calls int
}

func (s *stubFeedSource) ListDue(ctx context.Context, now, fallbackBefore time.Time) ([]model.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > 1 {
		// Only the first pass has work; later ticks find nothing due.
		return nil, nil
	}
	return s.feeds, nil
}

type countingSyncer struct {
	mu     sync.Mutex
	synced map[int64]int
	done   chan struct{}
	want   int
}

func newCountingSyncer(want int) *countingSyncer {
	return &countingSyncer{synced: make(map[int64]int), done: make(chan struct{}), want: want}
}

func (s *countingSyncer) SyncFeed(ctx context.Context, feedID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[feedID]++
	if len(s.synced) == s.want {
		close(s.done)
	}
	return 0, nil
}

func TestScheduler_SyncsDueFeeds(t *testing.T) {
	source := &stubFeedSource{feeds: []model.Feed{{ID: 1}, {ID: 2}, {ID: 3}}}
	syncer := newCountingSyncer(3)

	sched := scheduler.New(source, syncer, time.Hour, 2)
	sched.Start(context.Background())
	defer sched.Stop()

	select {
	case <-syncer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("feeds were not synced in time")
	}

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	require.Equal(t, 1, syncer.synced[1])
	require.Equal(t, 1, syncer.synced[2])
	require.Equal(t, 1, syncer.synced[3])
}

func TestScheduler_StopWaitsForInFlight(t *testing.T) {
	source := &stubFeedSource{feeds: []model.Feed{{ID: 1}}}
	syncer := newCountingSyncer(1)

	sched := scheduler.New(source, syncer, time.Hour, 1)
	sched.Start(context.Background())

	select {
	case <-syncer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("feed was not synced in time")
	}
	sched.Stop()

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	require.Equal(t, 1, syncer.synced[1])
}
