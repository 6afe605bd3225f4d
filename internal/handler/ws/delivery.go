package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	wsmarshaller "github.com/nimblechat/presence-delivery-service/internal/handler/marshaller/ws"
	"github.com/nimblechat/presence-delivery-service/internal/service"
)

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	auther    service.Auther
	relay     *service.SignalRelay
	lifecycle *service.MessageLifecycle
	upgrader  websocket.Upgrader
}

func NewWSHandler(
	logger *slog.Logger,
	deliverer service.Deliverer,
	auther service.Auther,
	relay *service.SignalRelay,
	lifecycle *service.MessageLifecycle,
) *WSHandler {
	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		auther:    auther,
		relay:     relay,
		lifecycle: lifecycle,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. IDENTITY: the connection must arrive already attributed.
	identity, err := h.auther.Inspect(bearerToken(r))
	if err != nil {
		// Security-relevant, never fatal to the process.
		h.logger.Warn("unauthenticated connection attempt",
			slog.String("remote", r.RemoteAddr),
			slog.Any("err", err),
		)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID := identity.UserID

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	// 3. SUBSCRIBE: register -> sweep -> announce online, in that order.
	conn, err := h.deliverer.Subscribe(r.Context(), userID)
	if err != nil {
		h.logger.Error("subscription rejected", "user_id", userID, "error", err)
		return
	}
	// Teardown order matters: Close recycles the connector through a pool,
	// so the hub must let go of it before it can be handed to another user.
	defer conn.Close()
	defer h.deliverer.Unsubscribe(userID, conn.GetID())

	h.logger.Info("ws opened", "user_id", userID, "conn_id", conn.GetID())

	// 4. WRITE PUMP
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-conn.Recv():
				if !ok {
					return
				}

				data, err := wsmarshaller.MarshallDeliveryEvent(ev)
				if err != nil {
					h.logger.Error("failed to marshal ws event", "error", err)
					continue
				}

				if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
					h.logger.Warn("ws send failed", "error", err)
					return
				}
			}
		}
	}()

	// 5. READ PUMP: client signals (typing, recording, mark_read).
	h.readLoop(r, ws, userID)

	// The read side is gone; detach from the hub first, then close the
	// connector to drain the write pump.
	h.deliverer.Unsubscribe(userID, conn.GetID())
	conn.Close()
	<-done
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
