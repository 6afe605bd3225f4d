package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*SystemEvent)(nil)

// SystemEvent is a generic envelope for internal signals and domain notifications.
// Every event the Hub routes is addressed to exactly one physical recipient
// (the userID whose cell should fan it out to all live connections).
type SystemEvent struct {
	id         string
	userID     uuid.UUID
	kind       EventKind
	priority   EventPriority
	occurredAt int64
	payload    any
	cached     any // transport-specific serialization, marshalled once per user group
}

func (e *SystemEvent) GetID() string              { return e.id }
func (e *SystemEvent) GetKind() EventKind         { return e.kind }
func (e *SystemEvent) GetUserID() uuid.UUID       { return e.userID }
func (e *SystemEvent) GetPriority() EventPriority { return e.priority }
func (e *SystemEvent) GetOccurredAt() int64       { return e.occurredAt }
func (e *SystemEvent) GetPayload() any            { return e.payload }
func (e *SystemEvent) GetCached() any             { return e.cached }
func (e *SystemEvent) SetCached(v any)            { e.cached = v }

// NewSystemEvent is a universal factory for creating any signal.
func NewSystemEvent(userID uuid.UUID, kind EventKind, priority EventPriority, payload any) *SystemEvent {
	return &SystemEvent{
		id:         uuid.NewString(),
		userID:     userID,
		kind:       kind,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}

// NewConnectedEvent acknowledges a freshly registered connection.
func NewConnectedEvent(userID uuid.UUID, connID uuid.UUID) *SystemEvent {
	return NewSystemEvent(userID, Connected, PriorityHigh, &model.ConnectedPayload{
		Ok:            true,
		ConnectionID:  connID.String(),
		ServerVersion: model.ServerVersion,
	})
}

// NewPresenceEvent notifies targetID that friendID went online or offline.
// Presence is best-effort, current-state-only: low priority, droppable.
func NewPresenceEvent(targetID, friendID uuid.UUID, online bool) *SystemEvent {
	return NewSystemEvent(targetID, PresenceChanged, PriorityLow, &model.PresencePayload{
		FriendID: friendID,
		Online:   online,
	})
}

// NewTypingEvent relays a transient typing signal to the other party.
func NewTypingEvent(targetID, fromID, conversationID uuid.UUID, isTyping bool) *SystemEvent {
	return NewSystemEvent(targetID, TypingSignal, PriorityLow, &model.TypingPayload{
		ConversationID: conversationID,
		FromID:         fromID,
		IsTyping:       isTyping,
	})
}

// NewRecordingEvent relays a transient voice-recording signal to the other party.
func NewRecordingEvent(targetID, fromID, conversationID uuid.UUID, isRecording bool) *SystemEvent {
	return NewSystemEvent(targetID, RecordingSignal, PriorityLow, &model.RecordingPayload{
		ConversationID: conversationID,
		FromID:         fromID,
		IsRecording:    isRecording,
	})
}

// NewMessageEvent carries a freshly created message to the recipient's connections.
func NewMessageEvent(targetID uuid.UUID, msg *model.Message) *SystemEvent {
	return &SystemEvent{
		id:         uuid.NewString(),
		userID:     targetID,
		kind:       MessageCreated,
		priority:   PriorityHigh,
		occurredAt: msg.CreatedAt,
		payload:    msg,
	}
}
