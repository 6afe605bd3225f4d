package event

import "github.com/google/uuid"

type EventKind int16

const (
	Connected        EventKind = iota + 1 // [SYSTEM]
	PresenceChanged                       // [SYSTEM]
	MessageCreated                        // [BUSINESS]
	MessageDelivered                      // [BUSINESS]
	MessageRead                           // [BUSINESS]
	TypingSignal                          // [EPHEMERAL]
	RecordingSignal                       // [EPHEMERAL]
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case PresenceChanged:
		return "presence"
	case MessageCreated:
		return "new_message"
	case MessageDelivered:
		return "delivered"
	case MessageRead:
		return "read"
	case TypingSignal:
		return "typing"
	case RecordingSignal:
		return "recording"
	default:
		return "unknown"
	}
}

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	GetUserID() uuid.UUID
	GetPriority() EventPriority
	GetOccurredAt() int64
	GetPayload() any
	GetCached() any
	SetCached(any)
}

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// We return the key only if the event is ready to be exported.
	// If it returns an empty string, the dispatcher will skip publishing.
	GetRoutingKey() string
}
