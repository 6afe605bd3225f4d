package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

func TestAnnounceOnlineReachesConnectedPartners(t *testing.T) {
	f := newFixture(t)
	me := uuid.New()
	online, offline := uuid.New(), uuid.New()
	f.seedConversation(me, online)
	f.seedConversation(me, offline)

	onlineConn := f.connect(online)

	if err := f.presence.AnnounceOnline(context.Background(), me); err != nil {
		t.Fatal(err)
	}

	ev := waitEventOfKind(t, onlineConn, event.PresenceChanged)
	payload, ok := ev.GetPayload().(*model.PresencePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.GetPayload())
	}
	if payload.FriendID != me || !payload.Online {
		t.Fatalf("payload = %+v, want friend=%s online=true", payload, me)
	}
}

func TestAnnounceOfflinePayload(t *testing.T) {
	f := newFixture(t)
	me, partner := uuid.New(), uuid.New()
	f.seedConversation(me, partner)

	partnerConn := f.connect(partner)

	if err := f.presence.AnnounceOffline(context.Background(), me); err != nil {
		t.Fatal(err)
	}

	ev := waitEventOfKind(t, partnerConn, event.PresenceChanged)
	payload := ev.GetPayload().(*model.PresencePayload)
	if payload.Online {
		t.Fatal("expected an offline notification")
	}
}

func TestAnnounceWithoutConversationsIsSilent(t *testing.T) {
	f := newFixture(t)

	// A brand-new user with no conversations fans out to nobody.
	if err := f.presence.AnnounceOnline(context.Background(), uuid.New()); err != nil {
		t.Fatal(err)
	}
}

func TestAnnounceSkipsUnrelatedUsers(t *testing.T) {
	f := newFixture(t)
	me, partner := uuid.New(), uuid.New()
	f.seedConversation(me, partner)

	bystander := uuid.New()
	bystanderConn := f.connect(bystander)

	if err := f.presence.AnnounceOnline(context.Background(), me); err != nil {
		t.Fatal(err)
	}

	assertNoEvent(t, bystanderConn)
}
