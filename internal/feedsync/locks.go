package feedsync

import "sync"

// feedLocks serializes sync cycles per feed identity. A second cycle for a
// feed that already has one running is rejected rather than queued.
type feedLocks struct {
	mu     sync.Mutex
	active map[int64]struct{}
}

func newFeedLocks() *feedLocks {
	return &feedLocks{active: make(map[int64]struct{})}
}

func (l *feedLocks) tryAcquire(feedID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[feedID]; busy {
		return false
	}
	l.active[feedID] = struct{}{}
	return true
}

func (l *feedLocks) release(feedID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, feedID)
}
