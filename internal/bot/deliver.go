package bot

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dailydigest/internal/api"
	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
)

const deliveryConcurrency = 4

// DeliverDigest sends the latest digest of edition to every subscribed chat.
// Chats without a session or without a digest are skipped. Only a failure
// to list chats is returned.
func (h *Handler) DeliverDigest(ctx context.Context, edition domain.Edition) error {
	log := h.log.WithField("edition", edition)
	chats, err := h.repo.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chats: %w", err)
	}

	var delivered atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(deliveryConcurrency)
	for _, chat := range chats {
		if !chat.Subscribed {
			continue
		}
		g.Go(func() error {
			if h.deliverTo(ctx, h.chat(chat.ChatID), edition, log.WithField("chat_id", chat.ChatID)) {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(logrus.Fields{
		"chats":     len(chats),
		"delivered": delivered.Load(),
	}).Info("Scheduled delivery finished")
	return nil
}

func (h *Handler) deliverTo(ctx context.Context, cs *chatSession, edition domain.Edition, log logrus.FieldLogger) bool {
	token, err := cs.tokens.Token(ctx)
	if err != nil || token == "" {
		log.Debug("Chat has no session, skipping")
		return false
	}

	d, err := cs.client.LatestDigest(ctx, edition)
	switch {
	case api.IsNotFound(err):
		log.Info("No digest to deliver")
		return false
	case err != nil:
		log.WithError(err).Warn("Failed to fetch digest for delivery")
		return false
	case !d.Ready():
		return false
	}

	saved := make(map[int64]struct{})
	if items, err := cs.client.SavedArticles(ctx); err != nil {
		log.WithError(err).Warn("Failed to load saved articles for delivery")
	} else {
		for _, item := range items {
			saved[item.ID] = struct{}{}
		}
	}

	h.sendDigest(ctx, cs.id, digest.State{Digest: d, Edition: edition, SavedIDs: saved})
	return true
}
