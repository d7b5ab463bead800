package model

import "time"

// SubscriptionPrefs is the structured per-subscription configuration,
// persisted as versioned JSON on the subscription row.
type SubscriptionPrefs struct {
	Version     int      `json:"version"`
	DefaultTags []string `json:"default_tags,omitempty"`
}

type Subscription struct {
	UserID    int64
	FeedID    int64
	Prefs     SubscriptionPrefs
	CreatedAt time.Time
}

// Backfill selects how much historical unread state a new subscriber gets.
type Backfill string

const (
	BackfillNone  Backfill = "none"
	BackfillToday Backfill = "today"
	BackfillAll   Backfill = "all"
)

type User struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
