package wsmarshaller

import (
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

type WSMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	From           string `json:"from_id"`
	Text           string `json:"text"`
	State          string `json:"state"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at,omitempty"`
}

func mapMessage(m *model.Message) *WSMessage {
	return &WSMessage{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		From:           m.SenderID.String(),
		Text:           m.Text,
		State:          m.State.String(),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
