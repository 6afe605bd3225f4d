package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// Client frame shape:
//
//	{"event": "typing",    "conversation_id": "...", "is_typing": true}
//	{"event": "recording", "conversation_id": "...", "is_recording": true}
//	{"event": "mark_read", "conversation_id": "..."}
func (h *WSHandler) readLoop(r *http.Request, ws *websocket.Conn, userID uuid.UUID) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws read ended", "user_id", userID, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.dispatchFrame(r, userID, data)
	}
}

func (h *WSHandler) dispatchFrame(r *http.Request, userID uuid.UUID, data []byte) {
	if !gjson.ValidBytes(data) {
		h.logger.Debug("dropping malformed frame", "user_id", userID)
		return
	}

	frame := gjson.ParseBytes(data)
	eventName := frame.Get("event").String()

	convID, err := uuid.Parse(frame.Get("conversation_id").String())
	if err != nil {
		h.logger.Debug("frame without conversation id",
			"user_id", userID, "event", eventName)
		return
	}

	ctx := r.Context()

	switch eventName {
	case "typing":
		err = h.relay.Typing(ctx, convID, userID, frame.Get("is_typing").Bool())
	case "recording":
		err = h.relay.Recording(ctx, convID, userID, frame.Get("is_recording").Bool())
	case "mark_read":
		err = h.lifecycle.MarkRead(ctx, convID, userID)
	default:
		h.logger.Debug("unknown client frame", "user_id", userID, "event", eventName)
		return
	}

	if err != nil {
		// Abandon this signal only; the connection stays up.
		h.logger.Warn("client frame handling failed",
			"user_id", userID,
			"event", eventName,
			"conversation_id", convID,
			"error", err,
		)
	}
}
