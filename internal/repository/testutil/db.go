package testutil

import (
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"feedloop/internal/db"
	"feedloop/internal/model"
	"feedloop/pkg/snowflake"

	_ "modernc.org/sqlite"
)

// snowflakeOnce initializes the id generator once across parallel tests.
var snowflakeOnce sync.Once

// NewTestDB opens an in-memory SQLite database with all migrations applied.
// Shared-cache mode keeps the database alive across the pool's connections.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	snowflakeOnce.Do(func() {
		if err := snowflake.Init(0); err != nil {
			panic("failed to initialize snowflake: " + err.Error())
		}
	})

	dbName := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name(), time.Now().UnixNano())
	database, err := sql.Open("sqlite", dbName)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Migrate(database); err != nil {
		database.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func timeVal(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func ptrVal[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SeedUser inserts a user and returns its id.
func SeedUser(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()

	id := snowflake.NextID()
	_, err := db.Exec(`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, formatTime(time.Now()))
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return id
}

// SeedFeed inserts a feed and returns its id. Zero-value timestamps in the
// model become NULL columns.
func SeedFeed(t *testing.T, db *sql.DB, feed model.Feed) int64 {
	t.Helper()

	id := feed.ID
	if id == 0 {
		id = snowflake.NextID()
	}
	now := formatTime(time.Now())

	_, err := db.Exec(`
		INSERT INTO feeds (id, url, title, link, description, icon_path, icon_cached_at, etag, last_modified,
			attempted_at, fetched_at, next_fetch_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, feed.URL, feed.Title, ptrVal(feed.Link), ptrVal(feed.Description),
		ptrVal(feed.IconPath), timeVal(feed.IconCachedAt), ptrVal(feed.ETag), ptrVal(feed.LastModified),
		timeVal(feed.AttemptedAt), timeVal(feed.FetchedAt), timeVal(feed.NextFetchAt), now, now)
	if err != nil {
		t.Fatalf("failed to seed feed: %v", err)
	}
	return id
}

// SeedEntry inserts an entry and returns its id. Zero timestamps default to
// now.
func SeedEntry(t *testing.T, db *sql.DB, entry model.Entry) int64 {
	t.Helper()

	id := entry.ID
	if id == 0 {
		id = snowflake.NextID()
	}
	now := time.Now()
	if entry.DiscoveredAt.IsZero() {
		entry.DiscoveredAt = now
	}
	if entry.PublishedAt.IsZero() {
		entry.PublishedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.PublishedAt
	}

	_, err := db.Exec(`
		INSERT INTO entries (id, feed_id, external_id, url, title, content, discovered_at, published_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, entry.FeedID, entry.ExternalID, ptrVal(entry.URL), ptrVal(entry.Title), ptrVal(entry.Content),
		formatTime(entry.DiscoveredAt), formatTime(entry.PublishedAt), formatTime(entry.UpdatedAt))
	if err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}
	return id
}

// SeedSubscription inserts a subscription with default prefs.
func SeedSubscription(t *testing.T, db *sql.DB, userID, feedID int64, prefs string) {
	t.Helper()

	if prefs == "" {
		prefs = "{}"
	}
	_, err := db.Exec(`
		INSERT INTO subscriptions (user_id, feed_id, prefs, created_at) VALUES (?, ?, ?, ?)`,
		userID, feedID, prefs, formatTime(time.Now()))
	if err != nil {
		t.Fatalf("failed to seed subscription: %v", err)
	}
}

// SeedTag inserts a tag (or reuses an existing one) and returns its id.
func SeedTag(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()

	_, err := db.Exec(`INSERT INTO tags (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		snowflake.NextID(), name)
	if err != nil {
		t.Fatalf("failed to seed tag: %v", err)
	}

	var id int64
	if err := db.QueryRow(`SELECT id FROM tags WHERE name = ?`, name).Scan(&id); err != nil {
		t.Fatalf("failed to look up seeded tag: %v", err)
	}
	return id
}

// SeedEntryTag associates a tag with an entry for a user.
func SeedEntryTag(t *testing.T, db *sql.DB, userID, entryID, tagID int64) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO entry_tags (user_id, entry_id, tag_id) VALUES (?, ?, ?)`,
		userID, entryID, tagID)
	if err != nil {
		t.Fatalf("failed to seed entry tag: %v", err)
	}
}

// SeedState inserts a per-user entry state row.
func SeedState(t *testing.T, db *sql.DB, state model.UserEntryState) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO user_entry_states (user_id, entry_id, unread, starred) VALUES (?, ?, ?, ?)`,
		state.UserID, state.EntryID, boolToInt(state.Unread), boolToInt(state.Starred))
	if err != nil {
		t.Fatalf("failed to seed entry state: %v", err)
	}
}

// SeedSetting upserts a settings row.
func SeedSetting(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()))
	if err != nil {
		t.Fatalf("failed to seed setting: %v", err)
	}
}
