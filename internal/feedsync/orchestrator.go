package feedsync

import (
	"context"
	"errors"
	"strings"
	"time"

	"feedloop/internal/fetch"
	"feedloop/internal/model"
	"feedloop/pkg/logger"
)

// State names the phase a sync cycle is in. Transitions are strictly
// forward; a cycle that fails moves to StateErrored and stops.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateMerging
	StateTagging
	StatePurging
	StateScheduled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateTagging:
		return "tagging"
	case StatePurging:
		return "purging"
	case StateScheduled:
		return "scheduled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// IconFetcher retrieves and caches a feed's icon, returning the local path.
type IconFetcher interface {
	FetchIcon(ctx context.Context, imageURL, siteURL string) (string, error)
}

const (
	// iconMaxAge is how long a cached icon stays fresh.
	iconMaxAge = 7 * 24 * time.Hour
	// staticPollInterval spaces polls when dynamic scheduling is disabled.
	staticPollInterval = time.Hour
)

// Orchestrator drives the full sync cycle for one feed: fetch, merge, tag
// fan-out, retention, scheduling. All collaborators are explicit; two
// orchestrators over the same store do not share state.
type Orchestrator struct {
	store    Store
	fetcher  fetch.Fetcher
	settings Settings
	pipeline *Pipeline
	icons    IconFetcher
	locks    *feedLocks
	now      func() time.Time
	cacheFor time.Duration
}

type OrchestratorOption func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithIconFetcher enables periodic icon refresh.
func WithIconFetcher(icons IconFetcher) OrchestratorOption {
	return func(o *Orchestrator) { o.icons = icons }
}

// WithFetchCache asks the fetcher to reuse a parse younger than d.
func WithFetchCache(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.cacheFor = d }
}

func NewOrchestrator(store Store, fetcher fetch.Fetcher, settings Settings, pipeline *Pipeline, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		fetcher:  fetcher,
		settings: settings,
		pipeline: pipeline,
		locks:    newFeedLocks(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SyncFeed runs one full cycle for the feed and returns the number of new
// entries stored. A feed with a cycle already running is rejected with
// ErrSyncInProgress rather than queued.
func (o *Orchestrator) SyncFeed(ctx context.Context, feedID int64) (int, error) {
	if !o.locks.tryAcquire(feedID) {
		return 0, ErrSyncInProgress
	}
	defer o.locks.release(feedID)

	added, err := o.runCycle(ctx, feedID)
	if err != nil {
		o.setState(feedID, StateErrored)
		logger.Error("sync cycle failed",
			"module", "feedsync", "feed_id", feedID, "kind", KindOf(err).String(), "error", err)
		return added, err
	}
	return added, nil
}

func (o *Orchestrator) runCycle(ctx context.Context, feedID int64) (int, error) {
	cfg, err := LoadConfig(ctx, o.settings)
	if err != nil {
		return 0, err
	}

	feed, err := o.store.GetFeed(ctx, feedID)
	if err != nil {
		return 0, cycleErr(KindStore, "load feed", err)
	}

	now := o.now().UTC()
	if err := o.store.MarkFeedAttempted(ctx, feedID, now); err != nil {
		return 0, cycleErr(KindStore, "mark attempted", err)
	}

	o.setState(feedID, StateFetching)
	result, err := o.fetcher.Fetch(ctx, fetch.Request{
		URL:          feed.URL,
		ETag:         deref(feed.ETag),
		LastModified: deref(feed.LastModified),
		CacheFor:     o.cacheFor,
	})
	if err != nil {
		return 0, cycleErr(fetchKind(err), "fetch "+feed.URL, err)
	}

	if result.NotModified {
		logger.Debug("feed not modified", "module", "feedsync", "feed_id", feedID)
		if err := o.finishCycle(ctx, feedID, cfg, nil, now); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if err := o.refreshMetadata(ctx, feed.ID, feed.URL, result); err != nil {
		return 0, err
	}
	o.refreshIcon(ctx, feed, result, now)

	o.setState(feedID, StateMerging)
	merged, err := o.mergeItems(ctx, feedID, result.Feed.Items, cfg, now)
	if err != nil {
		return 0, err
	}

	o.setState(feedID, StateTagging)
	added, err := o.commitStaged(ctx, feedID, merged.staged)
	if err != nil {
		return added, err
	}

	o.setState(feedID, StatePurging)
	o.purge(ctx, feedID, cfg, now, len(result.Feed.Items))

	if err := o.store.UpdateFeedConditional(ctx, feedID, strPtr(result.ETag), strPtr(result.LastModified)); err != nil {
		return added, cycleErr(KindStore, "update conditional headers", err)
	}
	if err := o.finishCycle(ctx, feedID, cfg, merged.excluded, now); err != nil {
		return added, err
	}

	logger.Info("feed synced", "module", "feedsync", "feed_id", feedID,
		"added", added, "touched", merged.touched, "blocked", merged.blocked,
		"excluded", len(merged.excluded))
	return added, nil
}

// commitStaged stores each staged entry together with its tag fan-out and
// unread fan-out as one atomic unit.
func (o *Orchestrator) commitStaged(ctx context.Context, feedID int64, staged []stagedEntry) (int, error) {
	if len(staged) == 0 {
		return 0, nil
	}

	subscribers, err := o.store.Subscribers(ctx, feedID)
	if err != nil {
		return 0, cycleErr(KindStore, "list subscribers", err)
	}
	defaults, err := o.store.SubscriptionTagDefaults(ctx, feedID)
	if err != nil {
		return 0, cycleErr(KindStore, "load tag defaults", err)
	}
	disabled, err := o.store.DisabledPlugins(ctx, subscribers)
	if err != nil {
		return 0, cycleErr(KindStore, "load plugin opt-outs", err)
	}

	added := 0
	for _, s := range staged {
		tagsByUser := make(map[int64][]string)
		for _, userID := range subscribers {
			directives := o.pipeline.TagDirectives(s.link, s.title, s.content, disabled[userID])
			if tags := foldDirectives(defaults[userID], directives); len(tags) > 0 {
				tagsByUser[userID] = tags
			}
		}

		if _, err := o.store.CommitEntry(ctx, s.entry, tagsByUser, subscribers); err != nil {
			return added, cycleErr(KindStore, "commit entry", err)
		}
		added++
	}
	return added, nil
}

// finishCycle records the successful fetch and schedules the next one.
func (o *Orchestrator) finishCycle(ctx context.Context, feedID int64, cfg Config, excluded []time.Time, now time.Time) error {
	if err := o.store.MarkFeedFetched(ctx, feedID, now); err != nil {
		return cycleErr(KindStore, "mark fetched", err)
	}

	next := now.Add(staticPollInterval)
	if cfg.DynamicUpdates {
		stored, err := o.store.EntryUpdatedTimes(ctx, feedID)
		if err != nil {
			return cycleErr(KindStore, "load entry times", err)
		}
		next = nextFetchTime(excluded, stored, now)
	}
	if err := o.store.SetNextFetch(ctx, feedID, next); err != nil {
		return cycleErr(KindStore, "set next fetch", err)
	}

	o.setState(feedID, StateScheduled)
	return nil
}

func (o *Orchestrator) refreshMetadata(ctx context.Context, feedID int64, feedURL string, result *fetch.Result) error {
	title := result.Feed.Title
	if title == "" {
		title = feedURL
	}
	err := o.store.UpdateFeedMetadata(ctx, feedID, title,
		strPtr(result.Feed.Link), strPtr(result.Feed.Description))
	if err != nil {
		return cycleErr(KindStore, "update metadata", err)
	}
	return nil
}

// refreshIcon re-caches the feed icon once it is older than iconMaxAge.
// Failures are logged and ignored; a stale icon never fails a cycle.
func (o *Orchestrator) refreshIcon(ctx context.Context, feed model.Feed, result *fetch.Result, now time.Time) {
	if o.icons == nil {
		return
	}
	if feed.IconCachedAt != nil && now.Sub(*feed.IconCachedAt) < iconMaxAge {
		return
	}

	imageURL := ""
	if result.Feed.Image != nil {
		imageURL = result.Feed.Image.URL
	}
	siteURL := result.Feed.Link
	if siteURL == "" {
		siteURL = feed.URL
	}

	path, err := o.icons.FetchIcon(ctx, imageURL, siteURL)
	if err != nil {
		logger.Warn("icon refresh failed", "module", "feedsync", "feed_id", feed.ID, "error", err)
		return
	}
	if err := o.store.UpdateFeedIcon(ctx, feed.ID, path, now); err != nil {
		logger.Warn("icon update failed", "module", "feedsync", "feed_id", feed.ID, "error", err)
	}
}

// TagFeedEntries re-runs the tag prefilters over a feed's stored entries,
// for every subscriber or for one user only. Used after a subscription is
// created and after a plugin opt-in changes.
func (o *Orchestrator) TagFeedEntries(ctx context.Context, feedID int64, onlyUser *int64) error {
	entries, err := o.store.FeedEntries(ctx, feedID)
	if err != nil {
		return cycleErr(KindStore, "list entries", err)
	}

	var users []int64
	if onlyUser != nil {
		users = []int64{*onlyUser}
	} else if users, err = o.store.Subscribers(ctx, feedID); err != nil {
		return cycleErr(KindStore, "list subscribers", err)
	}
	if len(users) == 0 || len(entries) == 0 {
		return nil
	}

	defaults, err := o.store.SubscriptionTagDefaults(ctx, feedID)
	if err != nil {
		return cycleErr(KindStore, "load tag defaults", err)
	}
	disabled, err := o.store.DisabledPlugins(ctx, users)
	if err != nil {
		return cycleErr(KindStore, "load plugin opt-outs", err)
	}

	for _, entry := range entries {
		link, title, content := deref(entry.URL), deref(entry.Title), deref(entry.Content)
		for _, userID := range users {
			for _, name := range defaults[userID] {
				if err := o.store.TagEntry(ctx, userID, entry.ID, name); err != nil {
					return cycleErr(KindStore, "tag entry", err)
				}
			}
			for _, directive := range o.pipeline.TagDirectives(link, title, content, disabled[userID]) {
				if err := o.applyDirective(ctx, userID, entry.ID, directive); err != nil {
					return cycleErr(KindStore, "apply tag directive", err)
				}
			}
		}
	}
	return nil
}

func (o *Orchestrator) applyDirective(ctx context.Context, userID, entryID int64, directive string) error {
	if name, ok := strings.CutPrefix(directive, RemoveDirectivePrefix); ok {
		return o.store.UntagEntry(ctx, userID, entryID, name)
	}
	return o.store.TagEntry(ctx, userID, entryID, directive)
}

func (o *Orchestrator) setState(feedID int64, state State) {
	logger.Debug("sync state", "module", "feedsync", "feed_id", feedID, "state", state.String())
}

func fetchKind(err error) Kind {
	var fe *fetch.Error
	if errors.As(err, &fe) && fe.Kind == fetch.KindMalformed {
		return KindParse
	}
	return KindFetch
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
