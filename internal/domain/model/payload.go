package model

import "github.com/google/uuid"

const ServerVersion = "1.0.0"

// PresencePayload tells a user that one of their conversation partners
// changed online state.
type PresencePayload struct {
	FriendID uuid.UUID `json:"friend_id"`
	Online   bool      `json:"online"`
}

// DeliveredPayload tells a sender their pending messages in a conversation
// reached the recipient. One payload covers the whole conversation, not one
// per message.
type DeliveredPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// ReadPayload tells a sender the other party read the conversation.
type ReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// TypingPayload is a transient signal with no delivery guarantee.
type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	FromID         uuid.UUID `json:"from_id"`
	IsTyping       bool      `json:"is_typing"`
}

// RecordingPayload mirrors TypingPayload for voice-note recording.
type RecordingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	FromID         uuid.UUID `json:"from_id"`
	IsRecording    bool      `json:"is_recording"`
}

// ConnectedPayload is the handshake acknowledgment sent to a client right
// after its connection is registered.
type ConnectedPayload struct {
	Ok            bool   `json:"ok"`
	ConnectionID  string `json:"connection_id"`
	ServerVersion string `json:"server_version"`
}

// DisconnectedPayload is the notification sent before the server closes the stream.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"` // "SHUTDOWN", "EVICTED", "TIMEOUT"
}

// HubStats is a point-in-time snapshot of the connection registry.
type HubStats struct {
	TotalUsers       int `json:"total_users"`
	TotalConnections int `json:"total_connections"`
}
