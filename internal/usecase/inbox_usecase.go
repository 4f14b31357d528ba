package usecase

import (
	"context"
	"strings"

	"townsq/internal/domain/entity"
	"townsq/pkg/logger"
)

// InboxUseCase maintains the conversation list: wholesale loads from REST,
// client-side filtering, and the aggregate unread badge.
type InboxUseCase struct {
	store *Store
	api   ChatAPI
}

func NewInboxUseCase(store *Store, api ChatAPI) *InboxUseCase {
	return &InboxUseCase{
		store: store,
		api:   api,
	}
}

// LoadChats replaces the list from the server. On failure the previous state
// is left alone and the caller renders an empty list with a retry affordance;
// a failed load never takes down the messaging surface.
func (uc *InboxUseCase) LoadChats(ctx context.Context) error {
	chats, err := uc.api.GetChats(ctx)
	if err != nil {
		logger.Error("Inbox: failed to load chats: %v", err)
		return err
	}
	uc.store.ReplaceChats(chats)
	return nil
}

// Chats projects the list, optionally narrowed by a case-insensitive
// substring match over business name and category. Filtering never mutates
// the underlying list.
func (uc *InboxUseCase) Chats(filter string) []entity.Chat {
	chats := uc.store.Chats()
	if filter == "" {
		return chats
	}

	needle := strings.ToLower(filter)
	out := make([]entity.Chat, 0, len(chats))
	for _, chat := range chats {
		name := strings.ToLower(chat.Business.Name)
		category := strings.ToLower(chat.Business.Category)
		if strings.Contains(name, needle) || strings.Contains(category, needle) {
			out = append(out, chat)
		}
	}
	return out
}

func (uc *InboxUseCase) TotalUnread() int {
	return uc.store.TotalUnread()
}

// StartChat opens (or finds) the conversation with a business and refreshes
// the list so the new entry carries its business summary.
func (uc *InboxUseCase) StartChat(ctx context.Context, businessID string) (string, error) {
	chatID, err := uc.api.CreateChat(ctx, businessID)
	if err != nil {
		return "", err
	}
	if err := uc.LoadChats(ctx); err != nil {
		logger.Warn("Inbox: chat %s created but list refresh failed: %v", chatID, err)
	}
	return chatID, nil
}
