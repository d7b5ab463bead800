package repository

import (
	"context"
	"database/sql"
	"time"

	"feedloop/internal/model"
)

// StateRepository manages per-user unread/starred rows.
type StateRepository interface {
	// MarkUnread creates (or resets) unread state for the entry for every
	// listed user in one statement.
	MarkUnread(ctx context.Context, userIDs []int64, entryID int64) error
	// BackfillUnread marks a feed's existing entries unread for one user,
	// optionally limited to entries published at or after since.
	BackfillUnread(ctx context.Context, userID, feedID int64, since *time.Time) error
	Get(ctx context.Context, userID, entryID int64) (*model.UserEntryState, error)
	MarkRead(ctx context.Context, userID, entryID int64) error
	SetStarred(ctx context.Context, userID, entryID int64, starred bool) error
}

type stateRepository struct {
	db dbtx
}

func NewStateRepository(db dbtx) StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) MarkUnread(ctx context.Context, userIDs []int64, entryID int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `INSERT INTO user_entry_states (user_id, entry_id, unread) VALUES `
	args := make([]interface{}, 0, len(userIDs)*2)
	for i, userID := range userIDs {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?, 1)"
		args = append(args, userID, entryID)
	}
	query += ` ON CONFLICT(user_id, entry_id) DO UPDATE SET unread = 1`

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *stateRepository) BackfillUnread(ctx context.Context, userID, feedID int64, since *time.Time) error {
	query := `
		INSERT INTO user_entry_states (user_id, entry_id, unread)
		SELECT ?, id, 1 FROM entries WHERE feed_id = ?`
	args := []interface{}{userID, feedID}
	if since != nil {
		query += ` AND published_at >= ?`
		args = append(args, formatTime(*since))
	}
	query += ` ON CONFLICT(user_id, entry_id) DO UPDATE SET unread = 1`

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *stateRepository) Get(ctx context.Context, userID, entryID int64) (*model.UserEntryState, error) {
	var (
		state           model.UserEntryState
		unread, starred int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, entry_id, unread, starred FROM user_entry_states
		WHERE user_id = ? AND entry_id = ?`,
		userID, entryID).Scan(&state.UserID, &state.EntryID, &unread, &starred)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state.Unread = unread != 0
	state.Starred = starred != 0
	return &state, nil
}

func (r *stateRepository) MarkRead(ctx context.Context, userID, entryID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_entry_states SET unread = 0 WHERE user_id = ? AND entry_id = ?`,
		userID, entryID)
	return err
}

func (r *stateRepository) SetStarred(ctx context.Context, userID, entryID int64, starred bool) error {
	value := 0
	if starred {
		value = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_entry_states (user_id, entry_id, unread, starred) VALUES (?, ?, 0, ?)
		ON CONFLICT(user_id, entry_id) DO UPDATE SET starred = ?`,
		userID, entryID, value, value)
	return err
}
