package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"feedloop/internal/feedsync"
	"feedloop/internal/model"
	"feedloop/pkg/logger"
)

// fallbackInterval is how long a feed with no dynamic schedule may go
// between polls.
const fallbackInterval = time.Hour

// Syncer is the slice of the sync engine the scheduler drives.
type Syncer interface {
	SyncFeed(ctx context.Context, feedID int64) (int, error)
}

// FeedSource lists the feeds whose next poll is due.
type FeedSource interface {
	ListDue(ctx context.Context, now time.Time, fallbackBefore time.Time) ([]model.Feed, error)
}

// Scheduler polls the feed table on a fixed tick and fans due feeds out to
// the sync engine, bounded by a concurrency limit.
type Scheduler struct {
	feeds         FeedSource
	syncer        Syncer
	tick          time.Duration
	maxConcurrent int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(feeds FeedSource, syncer Syncer, tick time.Duration, maxConcurrent int64) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Scheduler{
		feeds:         feeds,
		syncer:        syncer,
		tick:          tick,
		maxConcurrent: maxConcurrent,
	}
}

// Start launches the polling loop. It returns immediately; Stop waits for
// in-flight syncs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// First pass right away so a restart does not wait out a full tick.
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	due, err := s.feeds.ListDue(ctx, now, now.Add(-fallbackInterval))
	if err != nil {
		logger.Error("listing due feeds failed", "module", "scheduler", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	logger.Debug("feeds due for sync", "module", "scheduler", "count", len(due))

	sem := semaphore.NewWeighted(s.maxConcurrent)
	for _, feed := range due {
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}

		s.wg.Add(1)
		go func(feedID int64) {
			defer s.wg.Done()
			defer sem.Release(1)

			if _, err := s.syncer.SyncFeed(ctx, feedID); err != nil {
				if errors.Is(err, feedsync.ErrSyncInProgress) {
					return
				}
				logger.Warn("scheduled sync failed",
					"module", "scheduler", "feed_id", feedID, "error", err)
			}
		}(feed.ID)
	}
}
