package model

import "time"

// Entry is one item parsed out of a feed. (FeedID, ExternalID) is unique;
// re-ingesting the same external id updates URL and UpdatedAt only.
type Entry struct {
	ID           int64
	FeedID       int64
	ExternalID   string
	URL          *string
	Title        *string
	Content      *string
	DiscoveredAt time.Time
	PublishedAt  time.Time
	UpdatedAt    time.Time
}

// UserEntryState carries the per-user unread/starred flags for an entry.
type UserEntryState struct {
	UserID  int64
	EntryID int64
	Unread  bool
	Starred bool
}

// UserEntry is an entry as served to one user, with read-time state attached.
type UserEntry struct {
	Entry
	Unread  bool
	Starred bool
	Tags    []string
}

// EntryDigest is the slice of an entry the retention manager compares for
// similarity purging.
type EntryDigest struct {
	ID          int64
	PublishedAt time.Time
	Content     string
	Starred     bool
	Tagged      bool
}
