package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
)

// The full reconnect choreography: the new session gets its ack, the backlog
// sweep confirms delivery to the sender, and only then do partners learn the
// user is online. The sender therefore always sees "delivered" before "online".
func TestSubscribeSweepsBeforeAnnouncing(t *testing.T) {
	f := newFixture(t)
	sender, recipient := uuid.New(), uuid.New()
	conv := f.seedConversation(sender, recipient)
	f.seedMessage(conv.ID, sender, 1)

	senderConn := f.connect(sender)
	ctx := context.Background()

	conn, err := f.sessions.Subscribe(ctx, recipient)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	defer f.sessions.Unsubscribe(recipient, conn.GetID())

	// The very first frame on the new session is the handshake ack.
	select {
	case ev := <-conn.Recv():
		if ev.GetKind() != event.Connected {
			t.Fatalf("first event on a new session = %v, want connected ack", ev.GetKind())
		}
	default:
		t.Fatal("connected ack must be queued synchronously during subscribe")
	}

	if waitEvent(t, senderConn).GetKind() != event.MessageDelivered {
		t.Fatal("sender must see the delivery confirmation first")
	}
	if waitEvent(t, senderConn).GetKind() != event.PresenceChanged {
		t.Fatal("sender must see the online announcement after the sweep")
	}
}

func TestUnsubscribeAnnouncesOfflineOnlyOnLastSession(t *testing.T) {
	f := newFixture(t)
	me, partner := uuid.New(), uuid.New()
	f.seedConversation(me, partner)

	partnerConn := f.connect(partner)
	ctx := context.Background()

	conn1, err := f.sessions.Subscribe(ctx, me)
	if err != nil {
		t.Fatal(err)
	}
	conn2, err := f.sessions.Subscribe(ctx, me)
	if err != nil {
		t.Fatal(err)
	}

	// Two sessions, two online announcements.
	waitEventOfKind(t, partnerConn, event.PresenceChanged)
	waitEventOfKind(t, partnerConn, event.PresenceChanged)

	// Closing one of two devices changes nothing for the partner.
	f.sessions.Unsubscribe(me, conn1.GetID())
	conn1.Close()
	assertNoEvent(t, partnerConn)
	if !f.hub.IsOnline(me) {
		t.Fatal("user must stay online while a session remains")
	}

	// The last device going away flips the user offline, announced once.
	f.sessions.Unsubscribe(me, conn2.GetID())
	conn2.Close()

	ev := waitEventOfKind(t, partnerConn, event.PresenceChanged)
	payload := ev.GetPayload().(*model.PresencePayload)
	if payload.Online || payload.FriendID != me {
		t.Fatalf("payload = %+v, want offline notification about %s", payload, me)
	}
	assertNoEvent(t, partnerConn)

	if f.hub.IsOnline(me) {
		t.Fatal("user must be offline after the last session closed")
	}
}

func TestEveryDeviceReceivesNewMessages(t *testing.T) {
	f := newFixture(t)
	sender, recipient := uuid.New(), uuid.New()
	conv := f.seedConversation(sender, recipient)

	ctx := context.Background()
	conn1, err := f.sessions.Subscribe(ctx, recipient)
	if err != nil {
		t.Fatal(err)
	}
	defer conn1.Close()
	conn2, err := f.sessions.Subscribe(ctx, recipient)
	if err != nil {
		t.Fatal(err)
	}
	defer conn2.Close()

	msg := f.seedMessage(conv.ID, sender, 1)
	f.hub.Broadcast(event.NewMessageEvent(recipient, &msg))

	// Both devices see the same message; the connected acks precede it.
	for _, conn := range []registry.Connector{conn1, conn2} {
		awaitKind(t, conn, event.MessageCreated)
	}
}

// A transport tears a session down by detaching from the hub first and only
// then releasing the connector for recycling. Traffic for the detached user
// must miss, and whatever the pool hands the next subscriber serves its new
// owner exclusively.
func TestDetachedConnectorServesOnlyItsNextOwner(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()
	ctx := context.Background()

	aliceConn, err := f.sessions.Subscribe(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	f.sessions.Unsubscribe(alice, aliceConn.GetID())
	aliceConn.Close()

	bobConn, err := f.sessions.Subscribe(ctx, bob)
	if err != nil {
		t.Fatal(err)
	}
	defer bobConn.Close()
	defer f.sessions.Unsubscribe(bob, bobConn.GetID())

	if bobConn.GetUserID() != bob {
		t.Fatalf("connector attributed to %s, want %s", bobConn.GetUserID(), bob)
	}
	if f.hub.Broadcast(event.NewPresenceEvent(alice, uuid.New(), true)) {
		t.Fatal("a detached user must not have live connections")
	}

	// Bob's session carries nothing but its own handshake ack.
	awaitKind(t, bobConn, event.Connected)
	select {
	case ev, ok := <-bobConn.Recv():
		if ok {
			t.Fatalf("unexpected %v event on a fresh session", ev.GetKind())
		}
	case <-time.After(150 * time.Millisecond):
	}
}

// awaitKind reads a session's stream until an event of the wanted kind shows up.
func awaitKind(t *testing.T, conn registry.Connector, kind event.EventKind) {
	t.Helper()
	for {
		select {
		case ev, ok := <-conn.Recv():
			if !ok {
				t.Fatalf("session closed before a %v event arrived", kind)
			}
			if ev.GetKind() == kind {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for a %v event", kind)
		}
	}
}
