package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

var (
	_ Eventer    = (*ReceiptEvent)(nil)
	_ Exportable = (*ReceiptEvent)(nil)
)

// ReceiptEvent is a delivery or read receipt addressed to the original sender.
//
// [STRATEGY]
// It distinguishes between:
//   - [ROUTING_TARGET] (UserID): the sender whose live connections receive the receipt.
//   - [EXPORT] (routing key): the bus topic the CRUD layer and other nodes consume,
//     e.g. to reset unread counters.
//
// One receipt covers a whole (sender, conversation) group, never a single message.
type ReceiptEvent struct {
	ID             uuid.UUID    `json:"id"`
	UserID         uuid.UUID    `json:"user_id"` // [PHYSICAL_RECIPIENT] The message sender
	ConversationID uuid.UUID    `json:"conversation_id"`
	Kind           EventKind    `json:"kind"`
	OccurredAt     int64        `json:"occurred_at"`
	Cached         any          `json:"-"` // [INTERNAL] Not for serialization
	payload        any
	remote         bool
}

func newReceipt(senderID, conversationID uuid.UUID, kind EventKind, payload any) *ReceiptEvent {
	return &ReceiptEvent{
		ID:             uuid.New(),
		UserID:         senderID,
		ConversationID: conversationID,
		Kind:           kind,
		OccurredAt:     time.Now().UnixMilli(),
		payload:        payload,
	}
}

// NewDeliveredEvent groups a sweep's transitions for one (sender, conversation) pair.
func NewDeliveredEvent(senderID, conversationID uuid.UUID) *ReceiptEvent {
	return newReceipt(senderID, conversationID, MessageDelivered,
		&model.DeliveredPayload{ConversationID: conversationID})
}

// NewReadEvent tells the sender the other party read the conversation.
func NewReadEvent(senderID, conversationID uuid.UUID) *ReceiptEvent {
	return newReceipt(senderID, conversationID, MessageRead,
		&model.ReadPayload{ConversationID: conversationID})
}

func (e *ReceiptEvent) GetID() string              { return e.ID.String() }
func (e *ReceiptEvent) GetKind() EventKind         { return e.Kind }
func (e *ReceiptEvent) GetUserID() uuid.UUID       { return e.UserID }
func (e *ReceiptEvent) GetPriority() EventPriority { return PriorityNormal }
func (e *ReceiptEvent) GetOccurredAt() int64       { return e.OccurredAt }
func (e *ReceiptEvent) GetPayload() any            { return e.payload }
func (e *ReceiptEvent) GetCached() any             { return e.Cached }
func (e *ReceiptEvent) SetCached(v any)            { e.Cached = v }

// NewRemoteReceiptEvent reconstructs a receipt consumed from the bus.
// Remote receipts fan out to local connections but are never re-exported;
// an empty routing key tells the dispatcher to skip them, breaking the loop.
func NewRemoteReceiptEvent(kind EventKind, senderID, conversationID uuid.UUID, occurredAt int64) *ReceiptEvent {
	var payload any
	switch kind {
	case MessageDelivered:
		payload = &model.DeliveredPayload{ConversationID: conversationID}
	case MessageRead:
		payload = &model.ReadPayload{ConversationID: conversationID}
	}
	return &ReceiptEvent{
		ID:             uuid.New(),
		UserID:         senderID,
		ConversationID: conversationID,
		Kind:           kind,
		OccurredAt:     occurredAt,
		payload:        payload,
		remote:         true,
	}
}

// GetRoutingKey generates the bus topic for receipt export.
// [PATTERN] chat_delivery.v1.{sender}.message.{delivered|read}
func (e *ReceiptEvent) GetRoutingKey() string {
	if e.remote {
		return ""
	}
	switch e.Kind {
	case MessageDelivered:
		return fmt.Sprintf("chat_delivery.v1.%s.message.delivered", e.UserID)
	case MessageRead:
		return fmt.Sprintf("chat_delivery.v1.%s.message.read", e.UserID)
	default:
		return ""
	}
}
