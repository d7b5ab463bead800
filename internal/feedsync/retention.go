package feedsync

import (
	"context"
	"time"

	"github.com/samber/lo"

	"feedloop/internal/model"
	"feedloop/pkg/logger"
	"feedloop/pkg/textsim"
)

// similarityCandidateLimit bounds the pairwise comparison to the newest
// entries; older ones have already survived earlier passes.
const similarityCandidateLimit = 200

// purge runs the age purge and the similarity purge. Both are best effort:
// a failure is logged and the cycle carries on, since retention can catch up
// next time.
func (o *Orchestrator) purge(ctx context.Context, feedID int64, cfg Config, now time.Time, keepRecent int) {
	if cfg.PurgeDays > 0 {
		if err := o.purgeAged(ctx, feedID, cfg, now, keepRecent); err != nil {
			logger.Warn("age purge failed", "module", "feedsync", "feed_id", feedID, "error", err)
		}
	}
	if cfg.MatchSimilarity > 0 {
		if err := o.purgeSimilar(ctx, feedID, cfg); err != nil {
			logger.Warn("similarity purge failed", "module", "feedsync", "feed_id", feedID, "error", err)
		}
	}
}

// purgeAged deletes entries past the retention window that are neither
// starred nor tagged, always sparing the keepRecent most recently published
// entries so a sparse feed never empties out.
func (o *Orchestrator) purgeAged(ctx context.Context, feedID int64, cfg Config, now time.Time, keepRecent int) error {
	olderThan := now.AddDate(0, 0, -cfg.PurgeDays)
	ids, err := o.store.PurgeCandidates(ctx, feedID, olderThan, keepRecent)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	deleted, err := o.store.DeleteEntries(ctx, ids)
	if err != nil {
		return err
	}
	logger.Info("purged aged entries", "module", "feedsync", "feed_id", feedID, "count", deleted)
	return nil
}

// purgeSimilar compares the newest entries pairwise and deletes the later of
// any two whose content similarity exceeds the threshold. Starred entries
// are always protected; tagged ones only when configured.
func (o *Orchestrator) purgeSimilar(ctx context.Context, feedID int64, cfg Config) error {
	digests, err := o.store.RecentEntryDigests(ctx, feedID, similarityCandidateLimit)
	if err != nil {
		return err
	}
	if len(digests) < 2 {
		return nil
	}

	doomed := make(map[int64]bool)
	for i := 0; i < len(digests); i++ {
		if doomed[digests[i].ID] {
			continue
		}
		for j := i + 1; j < len(digests); j++ {
			victim := digests[j]
			if doomed[victim.ID] || protectedFromSimilarity(victim, cfg) {
				continue
			}
			score := textsim.Score(digests[i].Content, victim.Content) * 100
			if score > cfg.MatchSimilarity {
				doomed[victim.ID] = true
			}
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	deleted, err := o.store.DeleteEntries(ctx, lo.Keys(doomed))
	if err != nil {
		return err
	}
	logger.Info("purged near-duplicate entries", "module", "feedsync", "feed_id", feedID, "count", deleted)
	return nil
}

func protectedFromSimilarity(digest model.EntryDigest, cfg Config) bool {
	if digest.Starred {
		return true
	}
	return cfg.SimilarityProtectsTagged && digest.Tagged
}
