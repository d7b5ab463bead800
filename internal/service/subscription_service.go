package service

import (
	"context"
	"errors"
	"time"

	"feedloop/internal/feedsync"
	"feedloop/internal/model"
	"feedloop/internal/repository"
	"feedloop/internal/urlutil"
	"feedloop/pkg/logger"
)

// Syncer is the slice of the sync engine the subscription flow drives.
type Syncer interface {
	SyncFeed(ctx context.Context, feedID int64) (int, error)
	TagFeedEntries(ctx context.Context, feedID int64, onlyUser *int64) error
}

// SubscriptionService manages the user-to-feed relationship: subscribing
// (creating the feed on first use), unsubscribing, and tag defaults.
type SubscriptionService struct {
	store  *repository.Store
	syncer Syncer
}

func NewSubscriptionService(store *repository.Store, syncer Syncer) *SubscriptionService {
	return &SubscriptionService{store: store, syncer: syncer}
}

// Subscribe attaches the user to the feed at rawURL, creating the feed row
// on first subscription, then syncs it, tags its existing entries for the
// new subscriber and backfills unread state per the backfill mode.
//
// The initial sync is best effort: a feed that cannot be fetched right now
// still gets subscribed and will be retried by the scheduler.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID int64, rawURL string, prefs model.SubscriptionPrefs, backfill model.Backfill) (model.Feed, error) {
	normalized := urlutil.NormalizeFeedURL(rawURL)
	if normalized == "" {
		return model.Feed{}, ErrInvalid
	}

	feed, err := s.findOrCreateFeed(ctx, normalized)
	if err != nil {
		return model.Feed{}, err
	}

	existing, err := s.store.Subscriptions().Get(ctx, userID, feed.ID)
	if err != nil {
		return model.Feed{}, err
	}
	if existing != nil {
		return model.Feed{}, ErrConflict
	}

	if _, err := s.store.Subscriptions().Create(ctx, model.Subscription{
		UserID: userID,
		FeedID: feed.ID,
		Prefs:  prefs,
	}); err != nil {
		return model.Feed{}, err
	}

	if _, err := s.syncer.SyncFeed(ctx, feed.ID); err != nil && !errors.Is(err, feedsync.ErrSyncInProgress) {
		logger.Warn("initial sync failed",
			"module", "service", "action", "subscribe", "feed_id", feed.ID, "error", err)
	}
	if err := s.syncer.TagFeedEntries(ctx, feed.ID, &userID); err != nil {
		logger.Warn("tagging existing entries failed",
			"module", "service", "action", "subscribe", "feed_id", feed.ID, "error", err)
	}

	if err := s.backfill(ctx, userID, feed.ID, backfill); err != nil {
		return model.Feed{}, err
	}
	return feed, nil
}

func (s *SubscriptionService) findOrCreateFeed(ctx context.Context, url string) (model.Feed, error) {
	existing, err := s.store.Feeds().FindByURL(ctx, url)
	if err != nil {
		return model.Feed{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	// Title falls back to the URL until the first successful fetch.
	return s.store.Feeds().Create(ctx, model.Feed{URL: url, Title: url})
}

func (s *SubscriptionService) backfill(ctx context.Context, userID, feedID int64, mode model.Backfill) error {
	switch mode {
	case model.BackfillNone, "":
		return nil
	case model.BackfillToday:
		since := startOfDay(time.Now().UTC())
		return s.store.States().BackfillUnread(ctx, userID, feedID, &since)
	case model.BackfillAll:
		return s.store.States().BackfillUnread(ctx, userID, feedID, nil)
	default:
		return ErrInvalid
	}
}

// Unsubscribe detaches the user from the feed. The feed and all its entries
// go with the last subscription.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, feedID int64) error {
	sub, err := s.store.Subscriptions().Get(ctx, userID, feedID)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrNotFound
	}

	if err := s.store.Subscriptions().Delete(ctx, userID, feedID); err != nil {
		return err
	}

	remaining, err := s.store.Subscriptions().CountByFeed(ctx, feedID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		logger.Info("removing feed with no subscribers",
			"module", "service", "action", "unsubscribe", "feed_id", feedID)
		return s.store.Feeds().Delete(ctx, feedID)
	}
	return nil
}

// SetDefaultTags replaces the subscription's default tag list. New entries
// of the feed will carry these tags for the user.
func (s *SubscriptionService) SetDefaultTags(ctx context.Context, userID, feedID int64, tags []string) error {
	sub, err := s.store.Subscriptions().Get(ctx, userID, feedID)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrNotFound
	}

	prefs := sub.Prefs
	prefs.DefaultTags = tags
	return s.store.Subscriptions().UpdatePrefs(ctx, userID, feedID, prefs)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
