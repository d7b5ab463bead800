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

func TestStore_CommitEntry(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice")
	bob := testutil.SeedUser(t, db, "bob")
	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})

	now := time.Now().UTC()
	created, err := store.CommitEntry(ctx, model.Entry{
		FeedID:       feedID,
		ExternalID:   "guid-1",
		Title:        strp("Post"),
		DiscoveredAt: now,
		PublishedAt:  now,
		UpdatedAt:    now,
	}, map[int64][]string{
		alice: {"news", "tech"},
	}, []int64{alice, bob})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	aliceTags, err := store.Tags().ListForEntry(ctx, alice, created.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"news", "tech"}, aliceTags)

	bobTags, err := store.Tags().ListForEntry(ctx, bob, created.ID)
	require.NoError(t, err)
	require.Empty(t, bobTags)

	for _, userID := range []int64{alice, bob} {
		state, err := store.States().Get(ctx, userID, created.ID)
		require.NoError(t, err)
		require.NotNil(t, state)
		require.True(t, state.Unread)
	}
}

func TestStore_CommitEntryRollsBackOnConflict(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice")
	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "dup"})

	now := time.Now().UTC()
	_, err := store.CommitEntry(ctx, model.Entry{
		FeedID:       feedID,
		ExternalID:   "dup",
		DiscoveredAt: now,
		PublishedAt:  now,
		UpdatedAt:    now,
	}, map[int64][]string{alice: {"news"}}, []int64{alice})
	require.Error(t, err)

	// Nothing from the failed unit is visible.
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tags WHERE name = 'news'`).Scan(&count))
	require.Zero(t, count)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM user_entry_states WHERE user_id = ?`, alice).Scan(&count))
	require.Zero(t, count)
}

func TestStore_SubscriptionTagDefaults(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice")
	bob := testutil.SeedUser(t, db, "bob")
	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})

	testutil.SeedSubscription(t, db, alice, feedID, `{"version":1,"default_tags":["go","news"]}`)
	testutil.SeedSubscription(t, db, bob, feedID, "")

	defaults, err := store.SubscriptionTagDefaults(ctx, feedID)
	require.NoError(t, err)
	require.Equal(t, []string{"go", "news"}, defaults[alice])
	// Subscribers without defaults are omitted.
	require.NotContains(t, defaults, bob)
}

func TestStore_TagAndUntagByName(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, "alice")
	feedID := testutil.SeedFeed(t, db, model.Feed{URL: "u", Title: "Feed"})
	entryID := testutil.SeedEntry(t, db, model.Entry{FeedID: feedID, ExternalID: "1"})

	require.NoError(t, store.TagEntry(ctx, userID, entryID, "news"))

	names, err := store.Tags().ListForEntry(ctx, userID, entryID)
	require.NoError(t, err)
	require.Equal(t, []string{"news"}, names)

	// Untagging by an unknown name is a no-op.
	require.NoError(t, store.UntagEntry(ctx, userID, entryID, "unknown"))

	require.NoError(t, store.UntagEntry(ctx, userID, entryID, "news"))
	names, err = store.Tags().ListForEntry(ctx, userID, entryID)
	require.NoError(t, err)
	require.Empty(t, names)
}
