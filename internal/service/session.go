package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
)

// Deliverer is the primary interface for transport handlers (WebSocket, long-poll).
type Deliverer interface {
	Subscribe(ctx context.Context, userID uuid.UUID) (registry.Connector, error)
	Unsubscribe(userID, connID uuid.UUID)
}

// SessionManager glues a transport connection's lifecycle to the registry,
// the delivery reconciler, and the presence broadcaster.
type SessionManager struct {
	hub        registry.Hubber
	reconciler *DeliveryReconciler
	presence   *PresenceBroadcaster
	logger     *slog.Logger

	bufferSize int
}

func NewSessionManager(
	hub registry.Hubber,
	reconciler *DeliveryReconciler,
	presence *PresenceBroadcaster,
	logger *slog.Logger,
) *SessionManager {
	return &SessionManager{
		hub:        hub,
		reconciler: reconciler,
		presence:   presence,
		logger:     logger,
		bufferSize: 1024,
	}
}

// Subscribe opens a registry session for an authenticated connection.
//
// The order is deliberate: register, then sweep, then announce online.
// Sweeping before the online announcement means a peer who fires a new
// message the instant they see "online" can never interleave its delivery
// confirmation with the backlog sweep of a reconnecting client.
func (s *SessionManager) Subscribe(ctx context.Context, userID uuid.UUID) (registry.Connector, error) {
	conn := registry.NewConnector(ctx, userID, s.bufferSize)
	s.hub.Register(conn)

	// Handshake ack to the new session only.
	conn.Send(event.NewConnectedEvent(userID, conn.GetID()), time.Second)

	if err := s.reconciler.Sweep(ctx, userID); err != nil {
		// The sweep is eventually consistent; the next reconnect or read
		// catches anything this one missed.
		s.logger.Warn("delivery sweep failed on connect",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
	}

	if err := s.presence.AnnounceOnline(ctx, userID); err != nil {
		s.logger.Warn("online announcement failed",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
	}

	return conn, nil
}

// Unsubscribe detaches the session. When the last session of the user is
// gone, their partners are told they went offline.
func (s *SessionManager) Unsubscribe(userID, connID uuid.UUID) {
	wentOffline := s.hub.Unregister(userID, connID)
	if !wentOffline {
		return
	}

	// The request context is gone by the time a disconnect fires.
	if err := s.presence.AnnounceOffline(context.Background(), userID); err != nil {
		s.logger.Warn("offline announcement failed",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
	}
}
