package amqp

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
)

// OnMessageCreatedV1 pushes a freshly sent message to the recipient's live
// connections and applies the at-send delivery optimization: the recipient is
// online right here, so the message is marked delivered immediately instead
// of waiting for their next reconnect sweep.
func (h *MessageHandler) OnMessageCreatedV1(ctx context.Context, userID uuid.UUID, raw *MessageV1) (event.Eventer, error) {
	msg, err := raw.ToDomain()
	if err != nil {
		h.logger.Error("MESSAGE_DECODE_FAILED", "err", err, "msg_id", raw.MessageID)
		return nil, nil // ACK: malformed IDs never become parseable on retry.
	}

	if _, err := h.lifecycle.MarkDeliveredAtSend(ctx, msg); err != nil {
		// The reconnect sweep is the safety net; delivery state is eventually
		// consistent, so the push to the recipient still goes out.
		h.logger.Warn("AT_SEND_DELIVERY_FAILED", "err", err, "msg_id", raw.MessageID)
	}

	return event.NewMessageEvent(userID, msg), nil
}

// OnConversationReadV1 handles the REST "open conversation" path: the CRUD
// layer publishes a read event and the lifecycle emits per-sender receipts.
func (h *MessageHandler) OnConversationReadV1(ctx context.Context, userID uuid.UUID, raw *ConversationReadV1) (event.Eventer, error) {
	convID, err := uuid.Parse(raw.ConversationID)
	if err != nil {
		h.logger.Error("READ_DECODE_FAILED", "err", err, "conversation_id", raw.ConversationID)
		return nil, nil
	}

	// The payload reader must be the user the routing key addressed; a
	// mismatch means the event was misrouted upstream.
	if raw.ReaderID != "" {
		readerID, err := uuid.Parse(raw.ReaderID)
		if err != nil || readerID != userID {
			h.logger.Error("READ_READER_MISMATCH",
				"reader_id", raw.ReaderID, "routed_to", userID)
			return nil, nil // ACK: retrying cannot reconcile the two.
		}
	}

	if err := h.lifecycle.MarkRead(ctx, convID, userID); err != nil {
		return nil, fmt.Errorf("mark read: %w", err) // NACK: retry
	}
	return nil, nil
}

// OnReceiptV1 fans a receipt exported by another node out to the sender's
// connections on this node. Own exports are skipped by source ID.
func (h *MessageHandler) OnReceiptV1(_ context.Context, userID uuid.UUID, raw *ReceiptV1) (event.Eventer, error) {
	if raw.Source == h.dispatcher.NodeID() {
		return nil, nil // Already broadcast locally when it was produced.
	}

	convID, err := uuid.Parse(raw.Payload.ConversationID)
	if err != nil {
		h.logger.Error("RECEIPT_DECODE_FAILED", "err", err, "receipt_id", raw.ID)
		return nil, nil
	}

	var kind event.EventKind
	switch raw.Kind {
	case "delivered":
		kind = event.MessageDelivered
	case "read":
		kind = event.MessageRead
	default:
		return nil, nil
	}

	return event.NewRemoteReceiptEvent(kind, userID, convID, raw.OccurredAt), nil
}
