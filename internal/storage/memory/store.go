// Package memory is the in-process store used by the dev profile and the
// test suites. It mirrors the conditional-update semantics of the Postgres
// store with per-message locking.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

var (
	_ storage.ConversationStore = (*Store)(nil)
	_ storage.MessageStore      = (*Store)(nil)
)

type storedMessage struct {
	mu  sync.Mutex
	msg model.Message
}

type Store struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]model.DirectConversation
	messages      map[uuid.UUID]*storedMessage
	byConvo       map[uuid.UUID][]uuid.UUID // conversationID -> message IDs in insert order
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[uuid.UUID]model.DirectConversation),
		messages:      make(map[uuid.UUID]*storedMessage),
		byConvo:       make(map[uuid.UUID][]uuid.UUID),
	}
}

// PutConversation registers a two-party conversation.
func (s *Store) PutConversation(c model.DirectConversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
}

// PutMessage inserts a message snapshot. New messages from the send path
// arrive in state "sent" with empty delivery sets.
func (s *Store) PutMessage(m model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[m.ID]; !exists {
		s.byConvo[m.ConversationID] = append(s.byConvo[m.ConversationID], m.ID)
	}
	s.messages[m.ID] = &storedMessage{msg: m}
}

// Message returns a copy of the stored message.
func (s *Store) Message(id uuid.UUID) (model.Message, bool) {
	s.mu.RLock()
	sm, ok := s.messages[id]
	s.mu.RUnlock()
	if !ok {
		return model.Message{}, false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return cloneMessage(sm.msg), true
}

func (s *Store) DirectPartners(_ context.Context, userID uuid.UUID) ([]model.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var partners []model.Partner
	for _, c := range s.conversations {
		other, err := c.Other(userID)
		if err != nil {
			continue
		}
		partners = append(partners, model.Partner{ConversationID: c.ID, UserID: other})
	}
	sort.Slice(partners, func(i, j int) bool {
		return partners[i].ConversationID.String() < partners[j].ConversationID.String()
	})
	return partners, nil
}

func (s *Store) Direct(_ context.Context, conversationID uuid.UUID) (model.DirectConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return model.DirectConversation{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) PendingDelivery(_ context.Context, userID uuid.UUID, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []model.Message
	for _, c := range s.conversations {
		if _, err := c.Other(userID); err != nil {
			continue
		}
		for _, id := range s.byConvo[c.ID] {
			sm := s.messages[id]
			sm.mu.Lock()
			m := sm.msg
			if m.State == model.StateSent && m.SenderID != userID && !m.DeliveredTo.Has(userID) {
				pending = append(pending, cloneMessage(m))
			}
			sm.mu.Unlock()
		}
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt < pending[j].CreatedAt })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) ConversationMessages(_ context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.byConvo[conversationID]
	if !ok {
		if _, exists := s.conversations[conversationID]; !exists {
			return nil, storage.ErrNotFound
		}
		return nil, nil
	}

	msgs := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		sm := s.messages[id]
		sm.mu.Lock()
		msgs = append(msgs, cloneMessage(sm.msg))
		sm.mu.Unlock()
	}
	return msgs, nil
}

func (s *Store) ApplyDelivered(_ context.Context, messageID, recipientID uuid.UUID) (bool, error) {
	s.mu.RLock()
	sm, ok := s.messages[messageID]
	s.mu.RUnlock()
	if !ok {
		return false, storage.ErrNotFound
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	m := &sm.msg
	if m.SenderID == recipientID || !m.State.CanAdvance(model.StateDelivered) || m.DeliveredTo.Has(recipientID) {
		return false, nil
	}

	m.DeliveredTo.Add(recipientID)
	m.State = model.StateDelivered
	return true, nil
}

func (s *Store) ApplyRead(_ context.Context, messageID, readerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	sm, ok := s.messages[messageID]
	s.mu.RUnlock()
	if !ok {
		return false, storage.ErrNotFound
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	m := &sm.msg
	if m.SenderID == readerID || !m.State.CanAdvance(model.StateRead) || m.ReadBy.Has(readerID) {
		return false, nil
	}

	m.ReadBy.Add(readerID)
	// A read message has necessarily been seen; keep deliveredTo consistent.
	m.DeliveredTo.Add(readerID)
	m.State = model.StateRead
	return true, nil
}

func cloneMessage(m model.Message) model.Message {
	out := m
	out.DeliveredTo = append(model.UserSet(nil), m.DeliveredTo...)
	out.ReadBy = append(model.UserSet(nil), m.ReadBy...)
	return out
}
