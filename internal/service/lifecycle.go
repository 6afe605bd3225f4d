package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

// MessageLifecycle owns the sent -> delivered -> read transitions of messages.
// All state changes go through the store's conditional updates, so concurrent
// sweeps, reads, and sends cannot violate the monotone order: the losing
// writer's update simply does not apply.
type MessageLifecycle struct {
	hub      registry.Hubber
	msgs     storage.MessageStore
	convs    storage.ConversationStore
	exporter ReceiptExporter
	logger   *slog.Logger
}

func NewMessageLifecycle(
	hub registry.Hubber,
	msgs storage.MessageStore,
	convs storage.ConversationStore,
	exporter ReceiptExporter,
	logger *slog.Logger,
) *MessageLifecycle {
	return &MessageLifecycle{
		hub:      hub,
		msgs:     msgs,
		convs:    convs,
		exporter: exporter,
		logger:   logger,
	}
}

// MarkRead records readerID's read receipt for a whole conversation and emits
// exactly one read event per distinct affected sender. Re-opening an
// already-read conversation finds nothing to transition and emits nothing.
func (l *MessageLifecycle) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) error {
	conv, err := l.convs.Direct(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("lifecycle: conversation %s: %w", conversationID, err)
	}
	if _, err := conv.Other(readerID); err != nil {
		return fmt.Errorf("lifecycle: reader %s in %s: %w", readerID, conversationID, err)
	}

	msgs, err := l.msgs.ConversationMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("lifecycle: messages of %s: %w", conversationID, err)
	}

	affected := make(map[uuid.UUID]struct{})

	for _, m := range msgs {
		if m.SenderID == readerID || m.State == model.StateRead || m.ReadBy.Has(readerID) {
			continue
		}

		applied, err := l.msgs.ApplyRead(ctx, m.ID, readerID)
		if err != nil {
			l.logger.Warn("read transition failed",
				slog.String("message_id", m.ID.String()),
				slog.Any("err", err),
			)
			continue
		}
		if applied {
			affected[m.SenderID] = struct{}{}
		}
	}

	for sender := range affected {
		ev := event.NewReadEvent(sender, conversationID)

		if !l.hub.Broadcast(ev) {
			l.logger.Debug("sender has no local connections for read receipt",
				slog.String("sender", sender.String()),
			)
		}

		if err := l.exporter.Publish(ctx, ev); err != nil {
			l.logger.Warn("read receipt export failed",
				slog.String("sender", sender.String()),
				slog.Any("err", err),
			)
		}
	}

	return nil
}

// MarkDeliveredAtSend applies the at-send optimization: when a new message
// arrives and its recipient is online right now, the delivery transition is
// applied immediately instead of waiting for the recipient's next reconnect
// sweep. Returns whether the transition was applied; on success the caller's
// snapshot is advanced to match, so the push to the recipient never carries
// an already stale "sent" state.
func (l *MessageLifecycle) MarkDeliveredAtSend(ctx context.Context, msg *model.Message) (bool, error) {
	conv, err := l.convs.Direct(ctx, msg.ConversationID)
	if err != nil {
		return false, fmt.Errorf("lifecycle: conversation %s: %w", msg.ConversationID, err)
	}
	recipient, err := conv.Other(msg.SenderID)
	if err != nil {
		return false, fmt.Errorf("lifecycle: sender %s in %s: %w", msg.SenderID, msg.ConversationID, err)
	}

	if !l.hub.IsOnline(recipient) {
		return false, nil
	}

	applied, err := l.msgs.ApplyDelivered(ctx, msg.ID, recipient)
	if err != nil {
		return false, fmt.Errorf("lifecycle: at-send delivery of %s: %w", msg.ID, err)
	}
	if !applied {
		return false, nil
	}

	msg.State = model.StateDelivered
	msg.DeliveredTo.Add(recipient)

	ev := event.NewDeliveredEvent(msg.SenderID, msg.ConversationID)
	l.hub.Broadcast(ev)

	if err := l.exporter.Publish(ctx, ev); err != nil {
		l.logger.Warn("at-send delivery receipt export failed",
			slog.String("message_id", msg.ID.String()),
			slog.Any("err", err),
		)
	}

	return true, nil
}
