package repository

import (
	"context"
	"database/sql"
	"time"

	"feedloop/internal/db"
	"feedloop/internal/model"
)

// Store bundles the per-entity repositories behind the single persistence
// surface the sync engine consumes. Reads and single-row writes delegate to
// the repositories on the shared handle; CommitEntry opens a transaction and
// runs the whole per-entry unit against transaction-scoped repositories.
type Store struct {
	database *sql.DB

	feeds         FeedRepository
	entries       EntryRepository
	subscriptions SubscriptionRepository
	tags          TagRepository
	states        StateRepository
	users         UserRepository
}

func NewStore(database *sql.DB) *Store {
	return &Store{
		database:      database,
		feeds:         NewFeedRepository(database),
		entries:       NewEntryRepository(database),
		subscriptions: NewSubscriptionRepository(database),
		tags:          NewTagRepository(database),
		states:        NewStateRepository(database),
		users:         NewUserRepository(database),
	}
}

func (s *Store) GetFeed(ctx context.Context, id int64) (model.Feed, error) {
	return s.feeds.GetByID(ctx, id)
}

func (s *Store) UpdateFeedMetadata(ctx context.Context, id int64, title string, link, description *string) error {
	return s.feeds.UpdateMetadata(ctx, id, title, link, description)
}

func (s *Store) UpdateFeedIcon(ctx context.Context, id int64, path string, cachedAt time.Time) error {
	return s.feeds.UpdateIcon(ctx, id, path, cachedAt)
}

func (s *Store) UpdateFeedConditional(ctx context.Context, id int64, etag, lastModified *string) error {
	return s.feeds.UpdateConditional(ctx, id, etag, lastModified)
}

func (s *Store) MarkFeedAttempted(ctx context.Context, id int64, at time.Time) error {
	return s.feeds.MarkAttempted(ctx, id, at)
}

func (s *Store) MarkFeedFetched(ctx context.Context, id int64, at time.Time) error {
	return s.feeds.MarkFetched(ctx, id, at)
}

func (s *Store) SetNextFetch(ctx context.Context, id int64, at time.Time) error {
	return s.feeds.SetNextFetch(ctx, id, at)
}

func (s *Store) FindEntry(ctx context.Context, feedID int64, externalID string) (*model.Entry, error) {
	return s.entries.FindByExternalID(ctx, feedID, externalID)
}

func (s *Store) TouchEntry(ctx context.Context, id int64, url *string, at time.Time) error {
	return s.entries.Touch(ctx, id, url, at)
}

// CommitEntry inserts the entry, its per-user tag associations and its unread
// fan-out rows in one transaction. A failure on any piece leaves no trace of
// the entry.
func (s *Store) CommitEntry(ctx context.Context, entry model.Entry, tagsByUser map[int64][]string, unreadUsers []int64) (model.Entry, error) {
	var created model.Entry
	err := db.WithTx(ctx, s.database, func(tx *sql.Tx) error {
		entries := NewEntryRepository(tx)
		tags := NewTagRepository(tx)
		states := NewStateRepository(tx)

		var err error
		created, err = entries.Create(ctx, entry)
		if err != nil {
			return err
		}

		for userID, names := range tagsByUser {
			for _, name := range names {
				tag, err := tags.GetOrCreate(ctx, name)
				if err != nil {
					return err
				}
				if err := tags.TagEntry(ctx, userID, created.ID, tag.ID); err != nil {
					return err
				}
			}
		}

		return states.MarkUnread(ctx, unreadUsers, created.ID)
	})
	if err != nil {
		return model.Entry{}, err
	}
	return created, nil
}

func (s *Store) FeedEntries(ctx context.Context, feedID int64) ([]model.Entry, error) {
	return s.entries.ListByFeed(ctx, feedID)
}

func (s *Store) EntryUpdatedTimes(ctx context.Context, feedID int64) ([]time.Time, error) {
	return s.entries.UpdatedTimes(ctx, feedID)
}

func (s *Store) PurgeCandidates(ctx context.Context, feedID int64, olderThan time.Time, keepRecent int) ([]int64, error) {
	return s.entries.PurgeCandidates(ctx, feedID, olderThan, keepRecent)
}

func (s *Store) RecentEntryDigests(ctx context.Context, feedID int64, limit int) ([]model.EntryDigest, error) {
	return s.entries.RecentDigests(ctx, feedID, limit)
}

func (s *Store) DeleteEntries(ctx context.Context, ids []int64) (int64, error) {
	return s.entries.DeleteBatch(ctx, ids)
}

func (s *Store) Subscribers(ctx context.Context, feedID int64) ([]int64, error) {
	return s.subscriptions.Subscribers(ctx, feedID)
}

// SubscriptionTagDefaults returns each subscriber's default tag names for the
// feed, keyed by user id. Users without defaults are omitted.
func (s *Store) SubscriptionTagDefaults(ctx context.Context, feedID int64) (map[int64][]string, error) {
	subs, err := s.subscriptions.ListByFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}

	defaults := make(map[int64][]string, len(subs))
	for _, sub := range subs {
		if len(sub.Prefs.DefaultTags) > 0 {
			defaults[sub.UserID] = sub.Prefs.DefaultTags
		}
	}
	return defaults, nil
}

func (s *Store) DisabledPlugins(ctx context.Context, userIDs []int64) (map[int64]map[string]bool, error) {
	return s.users.DisabledPlugins(ctx, userIDs)
}

func (s *Store) TagEntry(ctx context.Context, userID, entryID int64, tagName string) error {
	tag, err := s.tags.GetOrCreate(ctx, tagName)
	if err != nil {
		return err
	}
	return s.tags.TagEntry(ctx, userID, entryID, tag.ID)
}

// UntagEntry removes the association by tag name. An unknown name means the
// association cannot exist, so it is a no-op.
func (s *Store) UntagEntry(ctx context.Context, userID, entryID int64, tagName string) error {
	tag, err := s.tags.FindByName(ctx, tagName)
	if err != nil {
		return err
	}
	if tag == nil {
		return nil
	}
	return s.tags.UntagEntry(ctx, userID, entryID, tag.ID)
}

func (s *Store) MarkUnread(ctx context.Context, userIDs []int64, entryID int64) error {
	return s.states.MarkUnread(ctx, userIDs, entryID)
}

// Feeds exposes the feed repository for callers outside the sync engine.
func (s *Store) Feeds() FeedRepository { return s.feeds }

// Entries exposes the entry repository for callers outside the sync engine.
func (s *Store) Entries() EntryRepository { return s.entries }

// Subscriptions exposes the subscription repository.
func (s *Store) Subscriptions() SubscriptionRepository { return s.subscriptions }

// Tags exposes the tag repository.
func (s *Store) Tags() TagRepository { return s.tags }

// States exposes the per-user state repository.
func (s *Store) States() StateRepository { return s.states }

// Users exposes the user repository.
func (s *Store) Users() UserRepository { return s.users }
