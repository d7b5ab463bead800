package repository

import (
	"context"
	"time"

	"feedloop/internal/model"
	"feedloop/pkg/snowflake"
)

type UserRepository interface {
	Create(ctx context.Context, name string) (model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
	// DisabledPlugins returns, per user, the set of tag-prefilter plugins
	// that user has opted out of.
	DisabledPlugins(ctx context.Context, userIDs []int64) (map[int64]map[string]bool, error)
	SetPluginDisabled(ctx context.Context, userID int64, plugin string, disabled bool) error
}

type userRepository struct {
	db dbtx
}

func NewUserRepository(db dbtx) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, name string) (model.User, error) {
	user := model.User{
		ID:        snowflake.NextID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		user.ID, user.Name, formatTime(user.CreatedAt))
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	var (
		user      model.User
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.Name, &createdAt)
	if err != nil {
		return model.User{}, err
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (r *userRepository) DisabledPlugins(ctx context.Context, userIDs []int64) (map[int64]map[string]bool, error) {
	disabled := make(map[int64]map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return disabled, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, plugin FROM user_plugin_optouts
		WHERE user_id IN (`+placeholders(len(userIDs))+`)`, int64Args(userIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID int64
			plugin string
		)
		if err := rows.Scan(&userID, &plugin); err != nil {
			return nil, err
		}
		if disabled[userID] == nil {
			disabled[userID] = make(map[string]bool)
		}
		disabled[userID][plugin] = true
	}
	return disabled, rows.Err()
}

func (r *userRepository) SetPluginDisabled(ctx context.Context, userID int64, plugin string, disabled bool) error {
	var err error
	if disabled {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO user_plugin_optouts (user_id, plugin) VALUES (?, ?)
			ON CONFLICT(user_id, plugin) DO NOTHING`, userID, plugin)
	} else {
		_, err = r.db.ExecContext(ctx, `
			DELETE FROM user_plugin_optouts WHERE user_id = ? AND plugin = ?`, userID, plugin)
	}
	return err
}
