package model

// MessageState is the delivery lifecycle position of a message.
type MessageState int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	StateSent MessageState = iota + 1
	StateDelivered
	StateRead
)

func (s MessageState) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateDelivered:
		return "delivered"
	case StateRead:
		return "read"
	default:
		return "unknown"
	}
}

// CanAdvance reports whether a transition to the target state is allowed.
// The lifecycle is strictly monotone: sent -> delivered -> read, never backwards.
func (s MessageState) CanAdvance(to MessageState) bool {
	return to > s
}

// ParseMessageState maps the persisted textual form back to the enum.
func ParseMessageState(s string) MessageState {
	switch s {
	case "sent":
		return StateSent
	case "delivered":
		return StateDelivered
	case "read":
		return StateRead
	default:
		return 0
	}
}
