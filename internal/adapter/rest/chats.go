package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"townsq/internal/domain/entity"
)

type sendMessageRequest struct {
	ChatID        string   `json:"chat_id"`
	Content       string   `json:"content"`
	Attachments   []string `json:"attachments,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

type createChatRequest struct {
	BusinessID string `json:"business_id"`
}

type createChatResponse struct {
	ID string `json:"id"`
}

func (c *Client) GetChats(ctx context.Context) ([]entity.Chat, error) {
	var chats []entity.Chat
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// GetMessages tolerates both the {messages: [...]} wrapper and a bare array,
// which differs between backend versions.
func (c *Client) GetMessages(ctx context.Context, chatID string) ([]entity.Message, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(chatID), nil, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		Messages []entity.Message `json:"messages"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Messages != nil {
		return wrapped.Messages, nil
	}

	var messages []entity.Message
	if err := json.Unmarshal(raw, &messages); err == nil {
		return messages, nil
	}
	return []entity.Message{}, nil
}

func (c *Client) MarkAsRead(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPatch, "/messages/"+url.PathEscape(chatID)+"/mark-as-read", nil, nil)
}

func (c *Client) SendMessage(ctx context.Context, chatID, content string, attachments []string, correlationID string) (*entity.Message, error) {
	var message entity.Message
	err := c.do(ctx, http.MethodPost, "/messages", sendMessageRequest{
		ChatID:        chatID,
		Content:       content,
		Attachments:   attachments,
		CorrelationID: correlationID,
	}, &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// CreateChat opens (or returns) the conversation between the viewer and a
// business.
func (c *Client) CreateChat(ctx context.Context, businessID string) (string, error) {
	var resp createChatResponse
	err := c.do(ctx, http.MethodPost, "/chats", createChatRequest{BusinessID: businessID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}
