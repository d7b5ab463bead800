package feedsync

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"feedloop/internal/hashutil"
	"feedloop/internal/model"
	"feedloop/pkg/logger"
)

// stagedEntry is a new entry that passed the merge phase and awaits its
// atomic commit. The prefiltered link/title/content are kept in the clear so
// tag prefilters see exactly what will be stored.
type stagedEntry struct {
	entry   model.Entry
	link    string
	title   string
	content string
}

type mergeResult struct {
	staged  []stagedEntry
	touched int
	blocked int
	// excluded holds the publication timestamps of items outside the purge
	// window; they still feed the cadence estimator.
	excluded []time.Time
}

// mergeItems classifies every fetched item exactly once: discarded by the
// blacklist, excluded by the purge window, an update to a known external id,
// or staged as new. Duplicate external ids within one document collapse to
// the first occurrence.
func (o *Orchestrator) mergeItems(ctx context.Context, feedID int64, items []*gofeed.Item, cfg Config, now time.Time) (mergeResult, error) {
	var result mergeResult

	cutoff := time.Time{}
	if cfg.PurgeDays > 0 {
		cutoff = now.AddDate(0, 0, -cfg.PurgeDays)
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		if matchesBlacklist(item.Title, cfg.Blacklist) {
			result.blocked++
			logger.Debug("item discarded by blacklist",
				"module", "feedsync", "feed_id", feedID, "title", item.Title)
			continue
		}

		published := itemPublished(item, now)

		if !cutoff.IsZero() && published.Before(cutoff) {
			result.excluded = append(result.excluded, published)
			continue
		}

		externalID := item.GUID
		if externalID == "" {
			externalID = hashutil.SHA256Hex(item.Link + item.Title)
		}
		if seen[externalID] {
			continue
		}
		seen[externalID] = true

		existing, err := o.store.FindEntry(ctx, feedID, externalID)
		if err != nil {
			return mergeResult{}, cycleErr(KindStore, "find entry", err)
		}

		if existing != nil {
			if err := o.store.TouchEntry(ctx, existing.ID, strPtr(item.Link), published); err != nil {
				return mergeResult{}, cycleErr(KindStore, "touch entry", err)
			}
			result.touched++
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		link, title, content := o.pipeline.ApplyContentPrefilters(item.Link, item.Title, content)

		result.staged = append(result.staged, stagedEntry{
			entry: model.Entry{
				FeedID:       feedID,
				ExternalID:   externalID,
				URL:          strPtr(link),
				Title:        strPtr(title),
				Content:      strPtr(content),
				DiscoveredAt: now,
				PublishedAt:  published,
				UpdatedAt:    published,
			},
			link:    link,
			title:   title,
			content: content,
		})
	}

	return result, nil
}

func matchesBlacklist(title string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	lowered := strings.ToLower(title)
	for _, pattern := range patterns {
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// itemPublished prefers the item's publication time, falls back to its
// update time, and finally to the observation time.
func itemPublished(item *gofeed.Item, now time.Time) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return now
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
