package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

// Opening a conversation with several unread messages yields exactly one read
// receipt for the sender, regardless of how many messages transitioned.
func TestMarkReadCollapsesToOneReceipt(t *testing.T) {
	f := newFixture(t)
	sender, reader := uuid.New(), uuid.New()
	conv := f.seedConversation(sender, reader)

	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, f.seedMessage(conv.ID, sender, int64(i)).ID)
	}

	senderConn := f.connect(sender)

	if err := f.lifecycle.MarkRead(context.Background(), conv.ID, reader); err != nil {
		t.Fatal(err)
	}

	for _, id := range ids {
		got, _ := f.store.Message(id)
		if got.State != model.StateRead {
			t.Fatalf("message %s state = %v, want read", id, got.State)
		}
	}

	ev := waitEventOfKind(t, senderConn, event.MessageRead)
	if ev.GetUserID() != sender {
		t.Fatal("read receipt must be addressed to the sender")
	}
	assertNoEvent(t, senderConn)

	if f.exporter.count() != 1 {
		t.Fatalf("expected 1 exported read receipt, got %d", f.exporter.count())
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	sender, reader := uuid.New(), uuid.New()
	conv := f.seedConversation(sender, reader)
	f.seedMessage(conv.ID, sender, 1)

	senderConn := f.connect(sender)
	ctx := context.Background()

	if err := f.lifecycle.MarkRead(ctx, conv.ID, reader); err != nil {
		t.Fatal(err)
	}
	waitEventOfKind(t, senderConn, event.MessageRead)

	// Re-opening an already-read conversation transitions nothing.
	if err := f.lifecycle.MarkRead(ctx, conv.ID, reader); err != nil {
		t.Fatal(err)
	}
	assertNoEvent(t, senderConn)
	if f.exporter.count() != 1 {
		t.Fatalf("repeat mark-read exported extra receipts: %d", f.exporter.count())
	}
}

func TestMarkReadRejectsOutsiders(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	conv := f.seedConversation(a, b)
	f.seedMessage(conv.ID, a, 1)

	err := f.lifecycle.MarkRead(context.Background(), conv.ID, uuid.New())
	if !errors.Is(err, model.ErrNotMember) {
		t.Fatalf("err = %v, want ErrNotMember", err)
	}
	if f.exporter.count() != 0 {
		t.Fatal("an outsider's read attempt must produce nothing")
	}
}

func TestMarkReadUnknownConversation(t *testing.T) {
	f := newFixture(t)
	if err := f.lifecycle.MarkRead(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Fatal("expected an error for an unknown conversation")
	}
}

func TestMarkDeliveredAtSendWithRecipientOnline(t *testing.T) {
	f := newFixture(t)
	sender, recipient := uuid.New(), uuid.New()
	conv := f.seedConversation(sender, recipient)
	msg := f.seedMessage(conv.ID, sender, 1)

	f.connect(recipient)
	senderConn := f.connect(sender)

	applied, err := f.lifecycle.MarkDeliveredAtSend(context.Background(), &msg)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("recipient is online, the transition must apply immediately")
	}

	got, _ := f.store.Message(msg.ID)
	if got.State != model.StateDelivered {
		t.Fatalf("state = %v, want delivered", got.State)
	}

	// The caller's snapshot is advanced in step with the store.
	if msg.State != model.StateDelivered || !msg.DeliveredTo.Has(recipient) {
		t.Fatalf("snapshot not advanced: state=%v deliveredTo=%v", msg.State, msg.DeliveredTo)
	}

	waitEventOfKind(t, senderConn, event.MessageDelivered)
	if f.exporter.count() != 1 {
		t.Fatalf("expected 1 exported receipt, got %d", f.exporter.count())
	}
}

func TestMarkDeliveredAtSendWithRecipientOffline(t *testing.T) {
	f := newFixture(t)
	sender, recipient := uuid.New(), uuid.New()
	conv := f.seedConversation(sender, recipient)
	msg := f.seedMessage(conv.ID, sender, 1)

	senderConn := f.connect(sender)

	applied, err := f.lifecycle.MarkDeliveredAtSend(context.Background(), &msg)
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("an offline recipient must leave the message for the reconnect sweep")
	}

	got, _ := f.store.Message(msg.ID)
	if got.State != model.StateSent {
		t.Fatalf("state = %v, want sent", got.State)
	}
	assertNoEvent(t, senderConn)
	if f.exporter.count() != 0 {
		t.Fatal("nothing applied, nothing exported")
	}
}
