package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, userID uuid.UUID, payload *T) (event.Eventer, error)

// Bind connects Watermill to domain logic, handling panic recovery, locality
// filtering, and fan-out.
func Bind[T any](h *MessageHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// Keep the consumer alive through handler panics.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		// [IDENTIFICATION]
		// The routing key carries the target user UUID for routing decisions.
		userID, ok := resolveUserID(msg)
		if !ok {
			h.logger.Warn("ROUTING_FAILED: target_missing", "msg_id", msg.UUID)
			return nil // ACK: invalid routing is a terminal state.
		}

		// [LOCALITY_FILTER]
		// Distributed scaling: process only if the target user is connected to THIS node.
		if !h.hub.IsOnline(userID) {
			return nil // ACK: handled by another instance.
		}

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: poison pill protection.
		}

		ev, err := fn(msg.Context(), userID, payload)
		if err != nil {
			return err // NACK: business failure triggers the retry policy.
		}

		if ev == nil {
			return nil
		}

		// [FAN_OUT_DISPATCH]
		// 1. Local delivery to the user's live connections.
		h.hub.Broadcast(ev)

		// 2. Global delivery for multi-node synchronization.
		if _, ok := ev.(event.Exportable); ok {
			if err := h.dispatcher.Publish(msg.Context(), ev); err != nil {
				return fmt.Errorf("GLOBAL_DISPATCH_FAILED: %w", err)
			}
		}

		return nil
	}
}

func resolveUserID(msg *message.Message) (uuid.UUID, bool) {
	rk := msg.Metadata.Get("x-routing-key")
	if rk == "" {
		rk = msg.Metadata.Get("routing_key")
	}

	for _, part := range strings.Split(rk, ".") {
		if uid, err := uuid.Parse(part); err == nil {
			return uid, true
		}
	}
	return uuid.Nil, false
}
