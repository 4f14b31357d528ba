package entity

import "time"

// Chat is one conversation between the viewer and a business. The
// counterparty is always a business; user-to-user chat is not modeled.
type Chat struct {
	ID          string          `json:"id"`
	Business    Business        `json:"business"`
	LastMessage *MessagePreview `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MessagePreview is the denormalized last-message snapshot used for list
// rendering without fetching full history.
type MessagePreview struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	SenderID  string    `json:"sender_id"`
	IsRead    bool      `json:"is_read"`
}
