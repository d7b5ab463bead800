package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedloop/internal/model"
	"feedloop/internal/repository"
	"feedloop/internal/repository/testutil"
)

func strp(s string) *string { return &s }

func TestEntryRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEntryRepository(db)
	ctx := context.Background()

	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	published := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, model.Entry{
		FeedID:       feedID,
		ExternalID:   "guid-1",
		URL:          strp("https://example.com/post"),
		Title:        strp("Post"),
		Content:      strp("<p>body</p>"),
		DiscoveredAt: published,
		PublishedAt:  published,
		UpdatedAt:    published,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	found, err := repo.FindByExternalID(ctx, feedID, "guid-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, "Post", *found.Title)
	require.True(t, found.PublishedAt.Equal(published))

	missing, err := repo.FindByExternalID(ctx, feedID, "guid-2")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestEntryRepository_DuplicateExternalIDRejected(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEntryRepository(db)
	ctx := context.Background()

	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	now := time.Now().UTC()

	_, err := repo.Create(ctx, model.Entry{FeedID: feedID, ExternalID: "dup", DiscoveredAt: now, PublishedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	_, err = repo.Create(ctx, model.Entry{FeedID: feedID, ExternalID: "dup", DiscoveredAt: now, PublishedAt: now, UpdatedAt: now})
	require.Error(t, err)
}

func TestEntryRepository_TouchUpdatesURLAndTimeOnly(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEntryRepository(db)
	ctx := context.Background()

	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	published := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	id := testutil.SeedEntry(t, db, model.Entry{
		FeedID: feedID, ExternalID: "guid",
		URL: strp("https://old"), Title: strp("Title"), Content: strp("body"),
		PublishedAt: published, UpdatedAt: published,
	})

	touched := published.Add(48 * time.Hour)
	require.NoError(t, repo.Touch(ctx, id, strp("https://new"), touched))

	entry, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "https://new", *entry.URL)
	require.True(t, entry.UpdatedAt.Equal(touched))
	// Title, content and published time stay as first stored.
	require.Equal(t, "Title", *entry.Title)
	require.Equal(t, "body", *entry.Content)
	require.True(t, entry.PublishedAt.Equal(published))
}

func TestEntryRepository_UpdatedTimesAscending(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEntryRepository(db)
	ctx := context.Background()

	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "c", UpdatedAt: base.Add(2 * time.Hour)})
	testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "a", UpdatedAt: base})
	testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "b", UpdatedAt: base.Add(time.Hour)})

	times, err := repo.UpdatedTimes(ctx, feedID)
	require.NoError(t, err)
	require.Len(t, times, 3)
	require.True(t, times[0].Equal(base))
	require.True(t, times[1].Equal(base.Add(time.Hour)))
	require.True(t, times[2].Equal(base.Add(2*time.Hour)))
}

func TestEntryRepository_PurgeCandidates(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEntryRepository(db)
	ctx := context.Background()

	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	userID := testutil.SeedUser(t, db, "alice")

	now := time.Now().UTC()
	old := now.AddDate(0, 0, -40)

	plainOld := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "old", PublishedAt: old})
	starredOld := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "starred", PublishedAt: old.Add(time.Minute)})
	taggedOld := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "tagged", PublishedAt: old.Add(2 * time.Minute)})
	testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "fresh", PublishedAt: now})

	testutil.SeedState(t, db, model.UserEntryState{UserID: userID, EntryID: starredOld, Starred: true})
	tagID := testutil.SeedTag(t, db, "keep")
	testutil.SeedEntryTag(t, db, userID, taggedOld, tagID)

	ids, err := repo.PurgeCandidates(ctx, feedID, now.AddDate(0, 0, -30), 1)
	require.NoError(t, err)
	require.Equal(t, []int64{plainOld}, ids)
}

func TestEntryRepository_PurgeCandidatesKeepsRecent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEntryRepository(db)
	ctx := context.Background()

	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	now := time.Now().UTC()
	old := now.AddDate(0, 0, -40)

	testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "a", PublishedAt: old})
	testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "b", PublishedAt: old.Add(time.Minute)})

	// Everything is old, but the two newest are spared.
	ids, err := repo.PurgeCandidates(ctx, feedID, now.AddDate(0, 0, -30), 2)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestEntryRepository_RecentDigests(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEntryRepository(db)
	ctx := context.Background()

	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	userID := testutil.SeedUser(t, db, "alice")
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	first := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "1", Content: strp("one"), PublishedAt: base})
	second := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "2", Content: strp("two"), PublishedAt: base.Add(time.Hour)})
	third := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "3", PublishedAt: base.Add(2 * time.Hour)})

	testutil.SeedState(t, db, model.UserEntryState{UserID: userID, EntryID: second, Starred: true})

	digests, err := repo.RecentDigests(ctx, feedID, 10)
	require.NoError(t, err)
	require.Len(t, digests, 3)
	// Ascending by published time.
	require.Equal(t, first, digests[0].ID)
	require.Equal(t, second, digests[1].ID)
	require.Equal(t, third, digests[2].ID)
	require.Equal(t, "one", digests[0].Content)
	require.True(t, digests[1].Starred)
	// NULL content comes back empty.
	require.Equal(t, "", digests[2].Content)

	limited, err := repo.RecentDigests(ctx, feedID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, second, limited[0].ID)
	require.Equal(t, third, limited[1].ID)
}

func TestEntryRepository_DeleteBatchCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEntryRepository(db)
	ctx := context.Background()

	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	userID := testutil.SeedUser(t, db, "alice")
	entryID := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "1"})
	keptID := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "2"})

	tagID := testutil.SeedTag(t, db, "news")
	testutil.SeedEntryTag(t, db, userID, entryID, tagID)
	testutil.SeedState(t, db, model.UserEntryState{UserID: userID, EntryID: entryID, Unread: true})

	deleted, err := repo.DeleteBatch(ctx, []int64{entryID})
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM entry_tags WHERE entry_id = ?`, entryID).Scan(&count))
	require.Zero(t, count)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM user_entry_states WHERE entry_id = ?`, entryID).Scan(&count))
	require.Zero(t, count)

	remaining, err := repo.CountByFeed(ctx, feedID)
	require.NoError(t, err)
	require.Equal(t, 1, remaining)

	_, err = repo.GetByID(ctx, keptID)
	require.NoError(t, err)
}
