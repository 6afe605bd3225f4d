// Package storage defines the persistence contracts the real-time core
// depends on. The stores are owned by the chat CRUD layer; this service only
// reads conversation membership and applies conditional message-state
// transitions through them.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

var (
	ErrNotFound = errors.New("storage: not found")

	// ErrNotDirect marks a conversation that does not have exactly two members.
	// Group conversations are outside this service's scope.
	ErrNotDirect = errors.New("storage: conversation is not two-party")
)

// ConversationStore is the read-only view of conversation membership.
type ConversationStore interface {
	// DirectPartners lists every (conversation, other member) pair for userID.
	DirectPartners(ctx context.Context, userID uuid.UUID) ([]model.Partner, error)

	// Direct loads a two-party conversation. ErrNotDirect if it has any other shape.
	Direct(ctx context.Context, conversationID uuid.UUID) (model.DirectConversation, error)
}

// MessageStore reads messages and applies the core's state transitions.
//
// ApplyDelivered and ApplyRead are atomic conditional updates: they succeed
// only while their precondition still holds, so two racing writers cannot
// both win and the monotone sent -> delivered -> read order survives any
// interleaving. A `false` result means the condition no longer held (the
// transition was already applied, or a concurrent writer got there first)
// and is not an error.
type MessageStore interface {
	// PendingDelivery lists messages addressed to userID that are still in
	// state "sent" and not yet delivered to them, oldest first, capped at limit.
	PendingDelivery(ctx context.Context, userID uuid.UUID, limit int) ([]model.Message, error)

	// ConversationMessages lists all messages of a conversation.
	ConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error)

	// ApplyDelivered records recipientID in deliveredTo and advances the state
	// to "delivered". Preconditions: recipient is not the sender, state is
	// "sent", recipient not already in deliveredTo.
	ApplyDelivered(ctx context.Context, messageID, recipientID uuid.UUID) (bool, error)

	// ApplyRead records readerID in readBy and advances the state to "read".
	// Preconditions: reader is not the sender, state is not "read", reader not
	// already in readBy.
	ApplyRead(ctx context.Context, messageID, readerID uuid.UUID) (bool, error)
}
