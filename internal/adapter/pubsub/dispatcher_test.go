package pubsub_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/adapter/pubsub"
	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
}

func (p *capturePublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, msg := range messages {
		p.topics = append(p.topics, topic)
		p.bodies = append(p.bodies, msg.Payload)
	}
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

func TestDispatcherPublishesExportableEvents(t *testing.T) {
	pub := &capturePublisher{}
	d := pubsub.NewEventDispatcher(pub)

	sender, convID := uuid.New(), uuid.New()
	ev := event.NewDeliveredEvent(sender, convID)

	if err := d.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if pub.count() != 1 {
		t.Fatalf("expected 1 publish, got %d", pub.count())
	}

	wantTopic := fmt.Sprintf("chat_delivery.v1.%s.message.delivered", sender)
	if pub.topics[0] != wantTopic {
		t.Fatalf("topic = %q, want %q", pub.topics[0], wantTopic)
	}

	var env pubsub.Envelope
	if err := json.Unmarshal(pub.bodies[0], &env); err != nil {
		t.Fatal(err)
	}
	if env.Source != d.NodeID() {
		t.Fatalf("envelope source = %q, want this node's ID %q", env.Source, d.NodeID())
	}
	if env.Kind != "delivered" || env.UserID != sender {
		t.Fatalf("envelope mangled: %+v", env)
	}
}

func TestDispatcherSkipsNonExportableEvents(t *testing.T) {
	pub := &capturePublisher{}
	d := pubsub.NewEventDispatcher(pub)

	// Presence never leaves the node through the dispatcher.
	ev := event.NewPresenceEvent(uuid.New(), uuid.New(), true)
	if err := d.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if pub.count() != 0 {
		t.Fatal("non-exportable events must never hit the bus")
	}
}

func TestDispatcherSkipsRemoteReceipts(t *testing.T) {
	pub := &capturePublisher{}
	d := pubsub.NewEventDispatcher(pub)

	ev := event.NewRemoteReceiptEvent(event.MessageRead, uuid.New(), uuid.New(), 1)
	if err := d.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if pub.count() != 0 {
		t.Fatal("a consumed receipt must not be re-exported")
	}
}

func TestDispatcherRejectsNil(t *testing.T) {
	d := pubsub.NewEventDispatcher(&capturePublisher{})
	if err := d.Publish(context.Background(), nil); err == nil {
		t.Fatal("expected an error for a nil event")
	}
}
