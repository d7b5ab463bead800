package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"feedloop/internal/model"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub model.Subscription) (model.Subscription, error)
	Get(ctx context.Context, userID, feedID int64) (*model.Subscription, error)
	ListByFeed(ctx context.Context, feedID int64) ([]model.Subscription, error)
	Subscribers(ctx context.Context, feedID int64) ([]int64, error)
	CountByFeed(ctx context.Context, feedID int64) (int, error)
	UpdatePrefs(ctx context.Context, userID, feedID int64, prefs model.SubscriptionPrefs) error
	Delete(ctx context.Context, userID, feedID int64) error
}

type subscriptionRepository struct {
	db dbtx
}

func NewSubscriptionRepository(db dbtx) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

const prefsVersion = 1

func marshalPrefs(prefs model.SubscriptionPrefs) (string, error) {
	if prefs.Version == 0 {
		prefs.Version = prefsVersion
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return "", fmt.Errorf("marshal subscription prefs: %w", err)
	}
	return string(raw), nil
}

func unmarshalPrefs(raw string) (model.SubscriptionPrefs, error) {
	var prefs model.SubscriptionPrefs
	if raw == "" {
		return prefs, nil
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return prefs, fmt.Errorf("unmarshal subscription prefs: %w", err)
	}
	return prefs, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	raw, err := marshalPrefs(sub.Prefs)
	if err != nil {
		return model.Subscription{}, err
	}
	sub.CreatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, feed_id, prefs, created_at) VALUES (?, ?, ?, ?)`,
		sub.UserID, sub.FeedID, raw, formatTime(sub.CreatedAt))
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (r *subscriptionRepository) Get(ctx context.Context, userID, feedID int64) (*model.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, feed_id, prefs, created_at FROM subscriptions WHERE user_id = ? AND feed_id = ?`,
		userID, feedID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByFeed(ctx context.Context, feedID int64) ([]model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, feed_id, prefs, created_at FROM subscriptions WHERE feed_id = ?`, feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *subscriptionRepository) Subscribers(ctx context.Context, feedID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM subscriptions WHERE feed_id = ?`, feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (r *subscriptionRepository) CountByFeed(ctx context.Context, feedID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions WHERE feed_id = ?`, feedID).Scan(&count)
	return count, err
}

func (r *subscriptionRepository) UpdatePrefs(ctx context.Context, userID, feedID int64, prefs model.SubscriptionPrefs) error {
	raw, err := marshalPrefs(prefs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE subscriptions SET prefs = ? WHERE user_id = ? AND feed_id = ?`,
		raw, userID, feedID)
	return err
}

func (r *subscriptionRepository) Delete(ctx context.Context, userID, feedID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = ? AND feed_id = ?`, userID, feedID)
	return err
}

func scanSubscription(row rowScanner) (model.Subscription, error) {
	var (
		sub       model.Subscription
		raw       string
		createdAt string
	)
	if err := row.Scan(&sub.UserID, &sub.FeedID, &raw, &createdAt); err != nil {
		return model.Subscription{}, err
	}

	prefs, err := unmarshalPrefs(raw)
	if err != nil {
		return model.Subscription{}, err
	}
	sub.Prefs = prefs

	if sub.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}
