package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

// SignalRelay fans transient per-conversation signals out to the other party.
// Nothing is retained between calls: a signal to an offline peer is dropped,
// and rapid repeats are not deduplicated here (senders debounce client-side).
type SignalRelay struct {
	hub    registry.Hubber
	convs  storage.ConversationStore
	logger *slog.Logger
}

func NewSignalRelay(hub registry.Hubber, convs storage.ConversationStore, logger *slog.Logger) *SignalRelay {
	return &SignalRelay{
		hub:    hub,
		convs:  convs,
		logger: logger,
	}
}

func (r *SignalRelay) Typing(ctx context.Context, conversationID, fromUserID uuid.UUID, isTyping bool) error {
	return r.relay(ctx, conversationID, fromUserID, func(target uuid.UUID) event.Eventer {
		return event.NewTypingEvent(target, fromUserID, conversationID, isTyping)
	})
}

func (r *SignalRelay) Recording(ctx context.Context, conversationID, fromUserID uuid.UUID, isRecording bool) error {
	return r.relay(ctx, conversationID, fromUserID, func(target uuid.UUID) event.Eventer {
		return event.NewRecordingEvent(target, fromUserID, conversationID, isRecording)
	})
}

func (r *SignalRelay) relay(ctx context.Context, conversationID, fromUserID uuid.UUID, build func(uuid.UUID) event.Eventer) error {
	conv, err := r.convs.Direct(ctx, conversationID)
	if err != nil {
		// A failed lookup abandons this signal only; nothing else is affected.
		return fmt.Errorf("relay: conversation %s: %w", conversationID, err)
	}

	target, err := conv.Other(fromUserID)
	if err != nil {
		return fmt.Errorf("relay: sender %s in %s: %w", fromUserID, conversationID, err)
	}

	if !r.hub.IsOnline(target) {
		return nil
	}

	if !r.hub.Broadcast(build(target)) {
		r.logger.Debug("ephemeral signal dropped",
			slog.String("target", target.String()),
			slog.String("conversation", conversationID.String()),
		)
	}
	return nil
}
