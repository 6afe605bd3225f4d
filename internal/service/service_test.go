package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	"github.com/nimblechat/presence-delivery-service/internal/service"
	"github.com/nimblechat/presence-delivery-service/internal/storage/memory"
)

// captureConn records everything the hub pushes to one session.
type captureConn struct {
	id     uuid.UUID
	userID uuid.UUID
	events chan event.Eventer
}

func newCaptureConn(userID uuid.UUID) *captureConn {
	return &captureConn{
		id:     uuid.New(),
		userID: userID,
		events: make(chan event.Eventer, 64),
	}
}

func (c *captureConn) GetID() uuid.UUID           { return c.id }
func (c *captureConn) GetUserID() uuid.UUID       { return c.userID }
func (c *captureConn) Recv() <-chan event.Eventer { return c.events }
func (c *captureConn) Close()                     {}
func (c *captureConn) Send(ev event.Eventer, _ time.Duration) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

func waitEvent(t *testing.T, c *captureConn) event.Eventer {
	t.Helper()
	select {
	case ev := <-c.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func waitEventOfKind(t *testing.T, c *captureConn, kind event.EventKind) event.Eventer {
	t.Helper()
	ev := waitEvent(t, c)
	if ev.GetKind() != kind {
		t.Fatalf("expected %v event, got %v", kind, ev.GetKind())
	}
	return ev
}

func assertNoEvent(t *testing.T, c *captureConn) {
	t.Helper()
	select {
	case ev := <-c.events:
		t.Fatalf("expected silence, got %v event", ev.GetKind())
	case <-time.After(150 * time.Millisecond):
	}
}

// stubExporter captures receipts instead of publishing them to the bus.
type stubExporter struct {
	mu     sync.Mutex
	events []event.Eventer
}

func (s *stubExporter) Publish(_ context.Context, ev event.Eventer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *stubExporter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fixture struct {
	hub      *registry.Hub
	store    *memory.Store
	exporter *stubExporter

	reconciler *service.DeliveryReconciler
	lifecycle  *service.MessageLifecycle
	presence   *service.PresenceBroadcaster
	relay      *service.SignalRelay
	sessions   *service.SessionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := registry.NewHub()
	t.Cleanup(hub.Shutdown)

	store := memory.NewStore()
	exporter := &stubExporter{}

	reconciler := service.NewDeliveryReconciler(hub, store, exporter, logger, 0)
	presence := service.NewPresenceBroadcaster(hub, store, logger)

	return &fixture{
		hub:        hub,
		store:      store,
		exporter:   exporter,
		reconciler: reconciler,
		lifecycle:  service.NewMessageLifecycle(hub, store, store, exporter, logger),
		presence:   presence,
		relay:      service.NewSignalRelay(hub, store, logger),
		sessions:   service.NewSessionManager(hub, reconciler, presence, logger),
	}
}

// connect attaches a capturing session for userID directly to the hub,
// bypassing the session manager's sweep and presence side effects.
func (f *fixture) connect(userID uuid.UUID) *captureConn {
	c := newCaptureConn(userID)
	f.hub.Register(c)
	return c
}

func (f *fixture) seedConversation(a, b uuid.UUID) model.DirectConversation {
	conv := model.DirectConversation{ID: uuid.New(), Members: [2]uuid.UUID{a, b}}
	f.store.PutConversation(conv)
	return conv
}

func (f *fixture) seedMessage(conv, sender uuid.UUID, createdAt int64) model.Message {
	m := model.Message{
		ID:             uuid.New(),
		ConversationID: conv,
		SenderID:       sender,
		Text:           "hello",
		State:          model.StateSent,
		CreatedAt:      createdAt,
	}
	f.store.PutMessage(m)
	return m
}
