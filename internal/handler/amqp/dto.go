package amqp

import (
	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

// MessageV1 is the payload published by the CRUD layer's send path.
type MessageV1 struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Body           string `json:"body"`
	OccurredAt     int64  `json:"occurred_at"`
}

func (d *MessageV1) ToDomain() (*model.Message, error) {
	id, err := uuid.Parse(d.MessageID)
	if err != nil {
		return nil, err
	}
	convID, err := uuid.Parse(d.ConversationID)
	if err != nil {
		return nil, err
	}
	senderID, err := uuid.Parse(d.SenderID)
	if err != nil {
		return nil, err
	}
	return &model.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       senderID,
		Text:           d.Body,
		State:          model.StateSent,
		CreatedAt:      d.OccurredAt,
	}, nil
}

// ConversationReadV1 is published when a user opens a conversation in-app.
type ConversationReadV1 struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
}

// ReceiptV1 is the bus form of an exported delivery/read receipt
// (pubsub.Envelope with the receipt payload inlined).
type ReceiptV1 struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Kind       string `json:"kind"` // "delivered" or "read"
	UserID     string `json:"user_id"`
	OccurredAt int64  `json:"occurred_at"`
	Payload    struct {
		ConversationID string `json:"conversation_id"`
	} `json:"payload"`
}
