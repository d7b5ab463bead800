package repository

import (
	"context"
	"database/sql"
	"time"

	"feedloop/internal/model"
	"feedloop/pkg/snowflake"
)

type FeedRepository interface {
	Create(ctx context.Context, feed model.Feed) (model.Feed, error)
	GetByID(ctx context.Context, id int64) (model.Feed, error)
	FindByURL(ctx context.Context, url string) (*model.Feed, error)
	List(ctx context.Context) ([]model.Feed, error)
	ListDue(ctx context.Context, now time.Time, fallbackBefore time.Time) ([]model.Feed, error)
	UpdateMetadata(ctx context.Context, id int64, title string, link, description *string) error
	UpdateIcon(ctx context.Context, id int64, path string, cachedAt time.Time) error
	UpdateConditional(ctx context.Context, id int64, etag, lastModified *string) error
	MarkAttempted(ctx context.Context, id int64, at time.Time) error
	MarkFetched(ctx context.Context, id int64, at time.Time) error
	SetNextFetch(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

type feedRepository struct {
	db dbtx
}

func NewFeedRepository(db dbtx) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, url, title, link, description, icon_path, icon_cached_at, etag, last_modified,
	attempted_at, fetched_at, next_fetch_at, created_at, updated_at`

func (r *feedRepository) Create(ctx context.Context, feed model.Feed) (model.Feed, error) {
	if feed.ID == 0 {
		feed.ID = snowflake.NextID()
	}
	now := time.Now().UTC()
	feed.CreatedAt = now
	feed.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feeds (id, url, title, link, description, icon_path, icon_cached_at, etag, last_modified,
			attempted_at, fetched_at, next_fetch_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		feed.ID, feed.URL, feed.Title, nullableString(feed.Link), nullableString(feed.Description),
		nullableString(feed.IconPath), nullableTime(feed.IconCachedAt),
		nullableString(feed.ETag), nullableString(feed.LastModified),
		nullableTime(feed.AttemptedAt), nullableTime(feed.FetchedAt), nullableTime(feed.NextFetchAt),
		formatTime(feed.CreatedAt), formatTime(feed.UpdatedAt),
	)
	if err != nil {
		return model.Feed{}, err
	}
	return feed, nil
}

func (r *feedRepository) GetByID(ctx context.Context, id int64) (model.Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	return scanFeed(row)
}

func (r *feedRepository) FindByURL(ctx context.Context, url string) (*model.Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url)
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (r *feedRepository) List(ctx context.Context) ([]model.Feed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeeds(rows)
}

// ListDue returns feeds whose next scheduled fetch has passed, plus feeds
// with no dynamic schedule whose last success predates fallbackBefore.
func (r *feedRepository) ListDue(ctx context.Context, now time.Time, fallbackBefore time.Time) ([]model.Feed, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+feedColumns+` FROM feeds
		WHERE (next_fetch_at IS NOT NULL AND next_fetch_at <= ?)
		   OR (next_fetch_at IS NULL AND (fetched_at IS NULL OR fetched_at <= ?))
		ORDER BY next_fetch_at`,
		formatTime(now), formatTime(fallbackBefore))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeeds(rows)
}

func (r *feedRepository) UpdateMetadata(ctx context.Context, id int64, title string, link, description *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds SET title = ?, link = ?, description = ?, updated_at = ? WHERE id = ?`,
		title, nullableString(link), nullableString(description), formatTime(time.Now()), id)
	return err
}

func (r *feedRepository) UpdateIcon(ctx context.Context, id int64, path string, cachedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds SET icon_path = ?, icon_cached_at = ? WHERE id = ?`,
		path, formatTime(cachedAt), id)
	return err
}

func (r *feedRepository) UpdateConditional(ctx context.Context, id int64, etag, lastModified *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds SET etag = ?, last_modified = ? WHERE id = ?`,
		nullableString(etag), nullableString(lastModified), id)
	return err
}

func (r *feedRepository) MarkAttempted(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE feeds SET attempted_at = ? WHERE id = ?`, formatTime(at), id)
	return err
}

func (r *feedRepository) MarkFetched(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE feeds SET fetched_at = ? WHERE id = ?`, formatTime(at), id)
	return err
}

func (r *feedRepository) SetNextFetch(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE feeds SET next_fetch_at = ? WHERE id = ?`, formatTime(at), id)
	return err
}

func (r *feedRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row rowScanner) (model.Feed, error) {
	var (
		feed                     model.Feed
		link, description        sql.NullString
		iconPath, etag, lastMod  sql.NullString
		iconCachedAt             sql.NullString
		attempted, fetched, next sql.NullString
		createdAt, updatedAt     string
	)
	err := row.Scan(&feed.ID, &feed.URL, &feed.Title, &link, &description, &iconPath, &iconCachedAt,
		&etag, &lastMod, &attempted, &fetched, &next, &createdAt, &updatedAt)
	if err != nil {
		return model.Feed{}, err
	}

	feed.Link = stringOrNil(link)
	feed.Description = stringOrNil(description)
	feed.IconPath = stringOrNil(iconPath)
	feed.ETag = stringOrNil(etag)
	feed.LastModified = stringOrNil(lastMod)

	if feed.IconCachedAt, err = scanTime(iconCachedAt); err != nil {
		return model.Feed{}, err
	}
	if feed.AttemptedAt, err = scanTime(attempted); err != nil {
		return model.Feed{}, err
	}
	if feed.FetchedAt, err = scanTime(fetched); err != nil {
		return model.Feed{}, err
	}
	if feed.NextFetchAt, err = scanTime(next); err != nil {
		return model.Feed{}, err
	}
	if feed.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Feed{}, err
	}
	if feed.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Feed{}, err
	}
	return feed, nil
}

func scanFeeds(rows *sql.Rows) ([]model.Feed, error) {
	var feeds []model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}
