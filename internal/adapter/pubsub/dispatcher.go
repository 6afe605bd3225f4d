package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
)

// EventDispatcher is the high-level contract for outgoing events.
// It keeps handlers agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
	Publisher() message.Publisher
	NodeID() string
}

// Envelope is the bus wire format for exported events. Source identifies the
// publishing node so consumers can skip their own exports.
type Envelope struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Kind       string    `json:"kind"`
	UserID     uuid.UUID `json:"user_id"`
	OccurredAt int64     `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type eventDispatcher struct {
	publisher message.Publisher
	nodeID    string
}

func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		// Short per-process identity, embedded in envelopes and queue names.
		nodeID: shortuuid.New(),
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	exportable, ok := ev.(event.Exportable)
	if !ok {
		return nil
	}
	topic := exportable.GetRoutingKey()
	if topic == "" {
		return nil
	}

	payload, err := json.Marshal(Envelope{
		ID:         ev.GetID(),
		Source:     d.nodeID,
		Kind:       ev.GetKind().String(),
		UserID:     ev.GetUserID(),
		OccurredAt: ev.GetOccurredAt(),
		Payload:    ev.GetPayload(),
	})
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: publish to %s: %w", topic, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

func (d *eventDispatcher) NodeID() string {
	return d.nodeID
}
