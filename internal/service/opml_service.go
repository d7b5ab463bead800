package service

import (
	"context"
	"errors"
	"io"
	"time"

	"feedloop/internal/model"
	"feedloop/internal/repository"
	"feedloop/pkg/logger"
	"feedloop/pkg/opml"
)

// OPMLService imports and exports a user's subscription list.
type OPMLService struct {
	store *repository.Store
	subs  *SubscriptionService
}

func NewOPMLService(store *repository.Store, subs *SubscriptionService) *OPMLService {
	return &OPMLService{store: store, subs: subs}
}

// Import subscribes the user to every feed outline in the document and
// returns how many subscriptions were created. Feeds the user already
// follows are skipped; feeds that fail outright are logged and skipped so
// one bad URL does not abort the rest.
func (s *OPMLService) Import(ctx context.Context, userID int64, r io.Reader, backfill model.Backfill) (int, error) {
	doc, err := opml.Parse(r)
	if err != nil {
		return 0, ErrInvalid
	}

	imported := 0
	for _, outline := range opml.FeedOutlines(doc) {
		_, err := s.subs.Subscribe(ctx, userID, outline.XMLURL, model.SubscriptionPrefs{}, backfill)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			logger.Warn("opml import skipped feed",
				"module", "service", "action", "opml_import", "url", outline.XMLURL, "error", err)
			continue
		}
		imported++
	}
	return imported, nil
}

// Export renders the user's subscriptions as an OPML document.
func (s *OPMLService) Export(ctx context.Context, userID int64) ([]byte, error) {
	feeds, err := s.store.Feeds().List(ctx)
	if err != nil {
		return nil, err
	}

	doc := opml.Document{
		Version: "2.0",
		Head:    opml.Head{Title: "feedloop subscriptions", DateCreated: time.Now().UTC().Format(time.RFC1123Z)},
	}
	for _, feed := range feeds {
		sub, err := s.store.Subscriptions().Get(ctx, userID, feed.ID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			continue
		}

		outline := opml.Outline{
			Text:   feed.Title,
			Title:  feed.Title,
			Type:   "rss",
			XMLURL: feed.URL,
		}
		if feed.Link != nil {
			outline.HTMLURL = *feed.Link
		}
		doc.Body.Outlines = append(doc.Body.Outlines, outline)
	}
	return opml.Encode(doc)
}
