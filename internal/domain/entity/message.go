package entity

import (
	"strings"
	"time"
)

const (
	SenderTypeUser     = "user"
	SenderTypeBusiness = "business"
)

const tempIDPrefix = "temp-"

type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chat_id"`
	SenderID   string `json:"sender_id"`
	SenderType string `json:"sender_type"` // "user", "business"
	Content    string `json:"content"`
	// CorrelationID is client-generated and echoed back by the server, so an
	// optimistic entry can be matched to its authoritative counterpart.
	CorrelationID string     `json:"correlation_id,omitempty"`
	Attachments   []string   `json:"attachments,omitempty"`
	IsRead        bool       `json:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Sender        *User      `json:"sender,omitempty"`
}

// IsTemp reports whether the message is a local optimistic placeholder that
// has not been confirmed by the server yet.
func (m *Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, tempIDPrefix)
}

// TempID builds a placeholder id for an optimistic send.
func TempID(suffix string) string {
	return tempIDPrefix + suffix
}
