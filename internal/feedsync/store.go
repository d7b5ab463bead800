package feedsync

import (
	"context"
	"time"

	"feedloop/internal/model"
)

// Store is the persistence contract the engine consumes. Implementations
// must return errors distinct from not-found; lookups that can legitimately
// miss return a nil pointer instead.
type Store interface {
	GetFeed(ctx context.Context, id int64) (model.Feed, error)
	UpdateFeedMetadata(ctx context.Context, id int64, title string, link, description *string) error
	UpdateFeedIcon(ctx context.Context, id int64, path string, cachedAt time.Time) error
	UpdateFeedConditional(ctx context.Context, id int64, etag, lastModified *string) error
	MarkFeedAttempted(ctx context.Context, id int64, at time.Time) error
	MarkFeedFetched(ctx context.Context, id int64, at time.Time) error
	SetNextFetch(ctx context.Context, id int64, at time.Time) error

	FindEntry(ctx context.Context, feedID int64, externalID string) (*model.Entry, error)
	TouchEntry(ctx context.Context, id int64, url *string, at time.Time) error
	// CommitEntry stores a new entry together with its per-user tags and
	// unread fan-out rows as one atomic unit.
	CommitEntry(ctx context.Context, entry model.Entry, tagsByUser map[int64][]string, unreadUsers []int64) (model.Entry, error)
	FeedEntries(ctx context.Context, feedID int64) ([]model.Entry, error)
	EntryUpdatedTimes(ctx context.Context, feedID int64) ([]time.Time, error)
	PurgeCandidates(ctx context.Context, feedID int64, olderThan time.Time, keepRecent int) ([]int64, error)
	RecentEntryDigests(ctx context.Context, feedID int64, limit int) ([]model.EntryDigest, error)
	// DeleteEntries removes entries and their tag associations in bulk.
	DeleteEntries(ctx context.Context, ids []int64) (int64, error)

	Subscribers(ctx context.Context, feedID int64) ([]int64, error)
	SubscriptionTagDefaults(ctx context.Context, feedID int64) (map[int64][]string, error)
	DisabledPlugins(ctx context.Context, userIDs []int64) (map[int64]map[string]bool, error)

	TagEntry(ctx context.Context, userID, entryID int64, tagName string) error
	UntagEntry(ctx context.Context, userID, entryID int64, tagName string) error
	MarkUnread(ctx context.Context, userIDs []int64, entryID int64) error
}
