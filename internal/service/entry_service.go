package service

import (
	"context"
	"database/sql"
	"errors"

	"feedloop/internal/feedsync"
	"feedloop/internal/model"
	"feedloop/internal/repository"
)

// EntryService serves entries to users with their per-user state attached,
// running the read-time content filters on the way out.
type EntryService struct {
	store    *repository.Store
	pipeline *feedsync.Pipeline
}

func NewEntryService(store *repository.Store, pipeline *feedsync.Pipeline) *EntryService {
	return &EntryService{store: store, pipeline: pipeline}
}

// ListForUser returns a feed's entries for one user, newest first.
func (s *EntryService) ListForUser(ctx context.Context, userID, feedID int64) ([]model.UserEntry, error) {
	entries, err := s.store.Entries().ListByFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}

	result := make([]model.UserEntry, 0, len(entries))
	for _, entry := range entries {
		userEntry, err := s.decorate(ctx, userID, entry)
		if err != nil {
			return nil, err
		}
		result = append(result, userEntry)
	}
	return result, nil
}

// Get returns one entry with the user's state attached.
func (s *EntryService) Get(ctx context.Context, userID, entryID int64) (model.UserEntry, error) {
	entry, err := s.store.Entries().GetByID(ctx, entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserEntry{}, ErrNotFound
	}
	if err != nil {
		return model.UserEntry{}, err
	}
	return s.decorate(ctx, userID, entry)
}

// decorate attaches unread/starred state and tags, and runs the read-time
// content filters. Filtered content is never written back.
func (s *EntryService) decorate(ctx context.Context, userID int64, entry model.Entry) (model.UserEntry, error) {
	userEntry := model.UserEntry{Entry: entry}

	if entry.Content != nil {
		filtered := s.pipeline.ApplyContentFilters(*entry.Content)
		userEntry.Content = &filtered
	}

	state, err := s.store.States().Get(ctx, userID, entry.ID)
	if err != nil {
		return model.UserEntry{}, err
	}
	if state != nil {
		userEntry.Unread = state.Unread
		userEntry.Starred = state.Starred
	}

	tags, err := s.store.Tags().ListForEntry(ctx, userID, entry.ID)
	if err != nil {
		return model.UserEntry{}, err
	}
	userEntry.Tags = tags

	return userEntry, nil
}

func (s *EntryService) MarkRead(ctx context.Context, userID, entryID int64) error {
	return s.store.States().MarkRead(ctx, userID, entryID)
}

func (s *EntryService) SetStarred(ctx context.Context, userID, entryID int64, starred bool) error {
	return s.store.States().SetStarred(ctx, userID, entryID, starred)
}

func (s *EntryService) Tag(ctx context.Context, userID, entryID int64, name string) error {
	if name == "" {
		return ErrInvalid
	}
	return s.store.TagEntry(ctx, userID, entryID, name)
}

// Untag removes a tag from the entry for the user; unknown names are a
// no-op.
func (s *EntryService) Untag(ctx context.Context, userID, entryID int64, name string) error {
	return s.store.UntagEntry(ctx, userID, entryID, name)
}
