package model

import "time"

// Feed is a remote content source. URL is unique across feeds. The
// timestamps track the last fetch attempt, the last successful fetch, and
// the dynamically scheduled next fetch.
type Feed struct {
	ID           int64
	URL          string
	Title        string
	Link         *string
	Description  *string
	IconPath     *string
	IconCachedAt *time.Time
	ETag         *string
	LastModified *string
	AttemptedAt  *time.Time
	FetchedAt    *time.Time
	NextFetchAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
