package lp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	wsmarshaller "github.com/nimblechat/presence-delivery-service/internal/handler/marshaller/ws"
	"github.com/nimblechat/presence-delivery-service/internal/service"
)

const (
	pollTimeout = 30 * time.Second
	drainMax    = 15
)

// LPHandler is the long-polling fallback transport for clients that cannot
// hold a WebSocket open.
type LPHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	auther    service.Auther
}

func NewLPHandler(logger *slog.Logger, deliverer service.Deliverer, auther service.Auther) *LPHandler {
	return &LPHandler{
		logger:    logger,
		deliverer: deliverer,
		auther:    auther,
	}
}

// Poll holds the request until an event arrives or the timeout fires.
// Note: a long-poll client flaps between online and offline with every
// request cycle; peers see that honestly, since presence is defined as
// "has an open connection".
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	identity, err := h.auther.Inspect(token)
	if err != nil {
		h.logger.Warn("unauthenticated poll attempt",
			slog.String("remote", r.RemoteAddr),
			slog.Any("err", err),
		)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID := identity.UserID

	// A connector that lives only for the duration of this request.
	conn, err := h.deliverer.Subscribe(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}
	// Unregister before Close: the connector goes back to a pool on Close
	// and must not still be reachable from a registry cell.
	defer conn.Close()
	defer h.deliverer.Unsubscribe(userID, conn.GetID())

	var events []event.Eventer

	select {
	case <-r.Context().Done():
		return

	case <-time.After(pollTimeout):
		w.WriteHeader(http.StatusNoContent)
		return

	case ev, ok := <-conn.Recv():
		if !ok {
			return
		}
		events = append(events, ev)

		// Drain whatever else is buffered to batch the response and
		// minimize subsequent round trips.
	drainLoop:
		for i := 0; i < drainMax; i++ {
			select {
			case ev, ok := <-conn.Recv():
				if !ok {
					break drainLoop
				}
				events = append(events, ev)
			default:
				break drainLoop
			}
		}
	}

	frames := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		data, err := wsmarshaller.MarshallDeliveryEvent(ev)
		if err != nil {
			h.logger.Error("failed to marshal poll event", "error", err)
			continue
		}
		frames = append(frames, data)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(frames); err != nil {
		h.logger.Warn("poll response write failed", "error", err)
	}
}
