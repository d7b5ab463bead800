package repository

import (
	"context"
	"database/sql"
	"time"

	"feedloop/internal/model"
	"feedloop/pkg/snowflake"
)

type EntryRepository interface {
	Create(ctx context.Context, entry model.Entry) (model.Entry, error)
	GetByID(ctx context.Context, id int64) (model.Entry, error)
	FindByExternalID(ctx context.Context, feedID int64, externalID string) (*model.Entry, error)
	// Touch updates the entry URL and last-updated timestamp only; title,
	// content and tags are never recomputed for a known external id.
	Touch(ctx context.Context, id int64, url *string, at time.Time) error
	ListByFeed(ctx context.Context, feedID int64) ([]model.Entry, error)
	CountByFeed(ctx context.Context, feedID int64) (int, error)
	// UpdatedTimes returns last-updated timestamps for a feed's entries in
	// ascending order, for the cadence estimator.
	UpdatedTimes(ctx context.Context, feedID int64) ([]time.Time, error)
	// PurgeCandidates returns ids of entries older than olderThan that are
	// neither starred nor tagged by any user, skipping the keepRecent most
	// recently published entries of the feed.
	PurgeCandidates(ctx context.Context, feedID int64, olderThan time.Time, keepRecent int) ([]int64, error)
	// RecentDigests returns the newest entries with content and protection
	// flags for the similarity purge, ordered by published time ascending.
	RecentDigests(ctx context.Context, feedID int64, limit int) ([]model.EntryDigest, error)
	DeleteBatch(ctx context.Context, ids []int64) (int64, error)
}

type entryRepository struct {
	db dbtx
}

func NewEntryRepository(db dbtx) EntryRepository {
	return &entryRepository{db: db}
}

const entryColumns = `id, feed_id, external_id, url, title, content, discovered_at, published_at, updated_at`

func (r *entryRepository) Create(ctx context.Context, entry model.Entry) (model.Entry, error) {
	if entry.ID == 0 {
		entry.ID = snowflake.NextID()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (id, feed_id, external_id, url, title, content, discovered_at, published_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.FeedID, entry.ExternalID, nullableString(entry.URL), nullableString(entry.Title),
		nullableString(entry.Content), formatTime(entry.DiscoveredAt), formatTime(entry.PublishedAt),
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return model.Entry{}, err
	}
	return entry, nil
}

func (r *entryRepository) GetByID(ctx context.Context, id int64) (model.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	return scanEntry(row)
}

func (r *entryRepository) FindByExternalID(ctx context.Context, feedID int64, externalID string) (*model.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM entries WHERE feed_id = ? AND external_id = ?`, feedID, externalID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepository) Touch(ctx context.Context, id int64, url *string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE entries SET url = ?, updated_at = ? WHERE id = ?`,
		nullableString(url), formatTime(at), id)
	return err
}

func (r *entryRepository) ListByFeed(ctx context.Context, feedID int64) ([]model.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM entries WHERE feed_id = ? ORDER BY published_at DESC`, feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *entryRepository) CountByFeed(ctx context.Context, feedID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE feed_id = ?`, feedID).Scan(&count)
	return count, err
}

func (r *entryRepository) UpdatedTimes(ctx context.Context, feedID int64) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT updated_at FROM entries WHERE feed_id = ? ORDER BY updated_at`, feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (r *entryRepository) PurgeCandidates(ctx context.Context, feedID int64, olderThan time.Time, keepRecent int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id FROM entries e
		WHERE e.feed_id = ?
		  AND e.published_at < ?
		  AND NOT EXISTS (SELECT 1 FROM user_entry_states s WHERE s.entry_id = e.id AND s.starred = 1)
		  AND NOT EXISTS (SELECT 1 FROM entry_tags t WHERE t.entry_id = e.id)
		  AND e.id NOT IN (
			SELECT id FROM entries WHERE feed_id = ? ORDER BY published_at DESC LIMIT ?
		  )`,
		feedID, formatTime(olderThan), feedID, keepRecent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *entryRepository) RecentDigests(ctx context.Context, feedID int64, limit int) ([]model.EntryDigest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.published_at, d.content, d.starred, d.tagged FROM (
			SELECT e.id, e.published_at, COALESCE(e.content, '') AS content,
			  EXISTS (SELECT 1 FROM user_entry_states s WHERE s.entry_id = e.id AND s.starred = 1) AS starred,
			  EXISTS (SELECT 1 FROM entry_tags t WHERE t.entry_id = e.id) AS tagged
			FROM entries e
			WHERE e.feed_id = ?
			ORDER BY e.published_at DESC LIMIT ?
		) d ORDER BY d.published_at`,
		feedID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var digests []model.EntryDigest
	for rows.Next() {
		var (
			digest    model.EntryDigest
			published string
		)
		if err := rows.Scan(&digest.ID, &published, &digest.Content, &digest.Starred, &digest.Tagged); err != nil {
			return nil, err
		}
		t, err := parseTime(published)
		if err != nil {
			return nil, err
		}
		digest.PublishedAt = t
		digests = append(digests, digest)
	}
	return digests, rows.Err()
}

// DeleteBatch removes the entries in one statement; tag associations and
// unread state go with them via foreign key cascades.
func (r *entryRepository) DeleteBatch(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEntry(row rowScanner) (model.Entry, error) {
	var (
		entry                          model.Entry
		url, title, content            sql.NullString
		discovered, published, updated string
	)
	err := row.Scan(&entry.ID, &entry.FeedID, &entry.ExternalID, &url, &title, &content,
		&discovered, &published, &updated)
	if err != nil {
		return model.Entry{}, err
	}

	entry.URL = stringOrNil(url)
	entry.Title = stringOrNil(title)
	entry.Content = stringOrNil(content)

	if entry.DiscoveredAt, err = parseTime(discovered); err != nil {
		return model.Entry{}, err
	}
	if entry.PublishedAt, err = parseTime(published); err != nil {
		return model.Entry{}, err
	}
	if entry.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Entry{}, err
	}
	return entry, nil
}
