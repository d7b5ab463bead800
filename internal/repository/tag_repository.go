package repository

import (
	"context"
	"database/sql"

	"feedloop/internal/model"
	"feedloop/pkg/snowflake"
)

type TagRepository interface {
	// GetOrCreate looks a tag up by name, creating it if absent. Creation is
	// idempotent under concurrent callers.
	GetOrCreate(ctx context.Context, name string) (model.Tag, error)
	FindByName(ctx context.Context, name string) (*model.Tag, error)
	TagEntry(ctx context.Context, userID, entryID, tagID int64) error
	// UntagEntry removes a (user, entry, tag) association; removing one that
	// does not exist is a no-op.
	UntagEntry(ctx context.Context, userID, entryID, tagID int64) error
	ListForEntry(ctx context.Context, userID, entryID int64) ([]string, error)
}

type tagRepository struct {
	db dbtx
}

func NewTagRepository(db dbtx) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) GetOrCreate(ctx context.Context, name string) (model.Tag, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		snowflake.NextID(), name)
	if err != nil {
		return model.Tag{}, err
	}

	var tag model.Tag
	err = r.db.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE name = ?`, name).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return model.Tag{}, err
	}
	return tag, nil
}

func (r *tagRepository) FindByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE name = ?`, name).Scan(&tag.ID, &tag.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) TagEntry(ctx context.Context, userID, entryID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entry_tags (user_id, entry_id, tag_id) VALUES (?, ?, ?)
		ON CONFLICT(user_id, entry_id, tag_id) DO NOTHING`,
		userID, entryID, tagID)
	return err
}

func (r *tagRepository) UntagEntry(ctx context.Context, userID, entryID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM entry_tags WHERE user_id = ? AND entry_id = ? AND tag_id = ?`,
		userID, entryID, tagID)
	return err
}

func (r *tagRepository) ListForEntry(ctx context.Context, userID, entryID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.name FROM entry_tags et JOIN tags t ON t.id = et.tag_id
		WHERE et.user_id = ? AND et.entry_id = ? ORDER BY t.name`,
		userID, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
