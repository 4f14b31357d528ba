package usecase

import (
	"context"
	"encoding/json"

	"townsq/internal/domain/entity"
)

// Transport is the live channel. Sends are fire-and-forget; a send error
// (typically a disconnect) makes the caller fall back to the REST path.
type Transport interface {
	IsConnected() bool
	JoinChat(chatID string)
	LeaveChat(chatID string)
	SendMessage(chatID, content, msgType string, attachments []string, correlationID string) error
	StartTyping(chatID string) error
	StopTyping(chatID string) error
	MarkAsRead(chatID string) error
	On(event string, h func(data json.RawMessage)) func()
}

// ChatAPI is the REST surface the messenger depends on: initial loads plus
// the fallback path for outgoing actions.
type ChatAPI interface {
	GetChats(ctx context.Context) ([]entity.Chat, error)
	GetMessages(ctx context.Context, chatID string) ([]entity.Message, error)
	MarkAsRead(ctx context.Context, chatID string) error
	SendMessage(ctx context.Context, chatID, content string, attachments []string, correlationID string) (*entity.Message, error)
	CreateChat(ctx context.Context, businessID string) (string, error)
}

// Notifier raises an OS-level notification for a message that arrived in a
// conversation the viewer does not have open.
type Notifier interface {
	Notify(chat *entity.Chat, message entity.Message)
}
