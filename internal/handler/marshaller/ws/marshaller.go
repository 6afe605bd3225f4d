package wsmarshaller

import (
	"encoding/json"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

// WSEvent is a generic wrapper for WebSocket frames to provide consistent structure.
type WSEvent struct {
	Event   string `json:"event"` // e.g. "new_message", "presence", "delivered"
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallDeliveryEvent prepares an event for WebSocket transmission. One
// event instance fans out to several write pumps at once, so the frame is
// encoded per call; the event's cache slot is not synchronized for this path.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	res := &WSEvent{
		Event:  ev.GetKind().String(),
		ID:     ev.GetID(),
		SentAt: ev.GetOccurredAt(),
	}

	switch p := ev.GetPayload().(type) {
	case *model.Message:
		res.Payload = mapMessage(p)
	default:
		// Presence, receipts, typing/recording, and connect payloads already
		// carry their wire tags.
		res.Payload = p
	}

	return json.Marshal(res)
}
