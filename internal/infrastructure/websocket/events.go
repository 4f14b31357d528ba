package websocket

import (
	"encoding/json"
	"time"

	"townsq/internal/domain/entity"
)

// Outbound command types.
const (
	CommandSendMessage = "sendMessage"
	CommandJoinChat    = "joinChat"
	CommandLeaveChat   = "leaveChat"
	CommandStartTyping = "startTyping"
	CommandStopTyping  = "stopTyping"
	CommandMarkAsRead  = "markAsRead"
)

// Inbound event types.
const (
	EventNewMessage          = "new-message"
	EventMessageNotification = "message-notification"
	EventUserTyping          = "user-typing"
	EventUserStoppedTyping   = "user-stopped-typing"
	EventMessagesRead        = "messages-read"
)

// Envelope is the wire frame for both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	ChatID    string          `json:"chat_id,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// SendMessageData is the payload of an outbound sendMessage command. The
// correlation id is echoed back on the resulting new-message event.
type SendMessageData struct {
	ChatID        string   `json:"chat_id"`
	Content       string   `json:"content"`
	Type          string   `json:"type"`
	Attachments   []string `json:"attachments,omitempty"`
	CorrelationID string   `json:"correlation_id"`
}

type NotificationData struct {
	ChatID  string         `json:"chat_id"`
	Message entity.Message `json:"message"`
}

type TypingData struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

type MessagesReadData struct {
	ChatID string `json:"chat_id"`
	ReadBy string `json:"read_by"`
}

func newEnvelope(msgType, chatID string, data interface{}) (Envelope, error) {
	env := Envelope{
		Type:      msgType,
		ChatID:    chatID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return env, err
		}
		env.Data = raw
	}
	return env, nil
}
