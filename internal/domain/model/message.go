package model

import "github.com/google/uuid"

// UserSet is a small set of user IDs stored as a slice.
// Conversations are two-party, so these never grow past one element today.
type UserSet []uuid.UUID

func (s UserSet) Has(id uuid.UUID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id if absent and reports whether the set changed.
func (s *UserSet) Add(id uuid.UUID) bool {
	if s.Has(id) {
		return false
	}
	*s = append(*s, id)
	return true
}

// [MESSAGE] CORE ENTITY REPRESENTING A CONVERSATION ELEMENT
//
// The CRUD layer owns creation and content; this service owns the
// State/DeliveredTo/ReadBy triple and mutates it only through the
// store's conditional updates.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Text           string
	State          MessageState
	DeliveredTo    UserSet
	ReadBy         UserSet
	CreatedAt      int64
	UpdatedAt      int64
}
