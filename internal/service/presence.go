package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

const (
	partnerCacheSize = 4096
	partnerCacheTTL  = time.Minute
	fanOutWorkers    = 8
)

// PresenceBroadcaster tells a user's direct conversation partners when they
// come online or drop offline. Presence is best-effort and current-state-only:
// partners with no live connections receive nothing, and nothing is queued.
type PresenceBroadcaster struct {
	hub    registry.Hubber
	convs  storage.ConversationStore
	logger *slog.Logger

	// cache keeps hot partner lists out of the storage path; entries expire
	// quickly so newly created conversations show up within a minute.
	cache *expirable.LRU[uuid.UUID, []model.Partner]

	// breaker shields connect/disconnect handling from a struggling storage
	// backend. While open, presence degrades to silence instead of stalling
	// every session lifecycle.
	breaker *gobreaker.CircuitBreaker
}

func NewPresenceBroadcaster(hub registry.Hubber, convs storage.ConversationStore, logger *slog.Logger) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		hub:    hub,
		convs:  convs,
		logger: logger,
		cache:  expirable.NewLRU[uuid.UUID, []model.Partner](partnerCacheSize, nil, partnerCacheTTL),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "conversation-partners",
		}),
	}
}

func (b *PresenceBroadcaster) AnnounceOnline(ctx context.Context, userID uuid.UUID) error {
	return b.announce(ctx, userID, true)
}

func (b *PresenceBroadcaster) AnnounceOffline(ctx context.Context, userID uuid.UUID) error {
	return b.announce(ctx, userID, false)
}

func (b *PresenceBroadcaster) announce(ctx context.Context, userID uuid.UUID, online bool) error {
	partners, err := b.partners(ctx, userID)
	if err != nil {
		return fmt.Errorf("presence: partner lookup for %s: %w", userID, err)
	}

	// A user with no conversations yet triggers no fan-out.
	if len(partners) == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fanOutWorkers)

	for _, p := range partners {
		p := p
		g.Go(func() error {
			if !b.hub.IsOnline(p.UserID) {
				return nil
			}
			if !b.hub.Broadcast(event.NewPresenceEvent(p.UserID, userID, online)) {
				// Mailbox overflow or the partner raced offline; presence
				// carries no delivery guarantee, so just note it.
				b.logger.Debug("presence event dropped",
					slog.String("target", p.UserID.String()),
					slog.String("friend", userID.String()),
				)
			}
			return nil
		})
	}

	return g.Wait()
}

func (b *PresenceBroadcaster) partners(ctx context.Context, userID uuid.UUID) ([]model.Partner, error) {
	if cached, ok := b.cache.Get(userID); ok {
		return cached, nil
	}

	result, err := b.breaker.Execute(func() (any, error) {
		return b.convs.DirectPartners(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	partners, _ := result.([]model.Partner)

	b.cache.Add(userID, partners)
	return partners, nil
}
