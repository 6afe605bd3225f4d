package model

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotMember is returned when a user asks about a conversation they do not belong to.
	ErrNotMember = errors.New("user is not a member of the conversation")
)

// DirectConversation is a strictly two-party conversation.
// Group conversations are unsupported by this service; stores reject them
// before one is ever constructed.
type DirectConversation struct {
	ID      uuid.UUID
	Members [2]uuid.UUID
}

// Other resolves the single counterpart of userID.
func (c DirectConversation) Other(userID uuid.UUID) (uuid.UUID, error) {
	switch userID {
	case c.Members[0]:
		return c.Members[1], nil
	case c.Members[1]:
		return c.Members[0], nil
	default:
		return uuid.Nil, ErrNotMember
	}
}

// Partner is one row of a user's direct-conversation membership listing.
type Partner struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
}
