package usecase

import (
	"sort"
	"sync"
	"time"

	"townsq/internal/domain/entity"
)

// Store is the normalized message store: chat summaries, one map from
// message id to message, and a per-chat ordered id list. The chat list and
// the open thread are projections of it, and every event mutates both under
// a single lock acquisition, so the summary and detail views cannot diverge
// structurally.
type Store struct {
	viewerID string

	mu            sync.RWMutex
	chats         map[string]*entity.Chat
	messages      map[string]*entity.Message
	threads       map[string][]string
	byCorrelation map[string]string // correlation id -> pending temp message id
	active        string
}

func NewStore(viewerID string) *Store {
	return &Store{
		viewerID:      viewerID,
		chats:         make(map[string]*entity.Chat),
		messages:      make(map[string]*entity.Message),
		threads:       make(map[string][]string),
		byCorrelation: make(map[string]string),
	}
}

func (s *Store) ViewerID() string {
	return s.viewerID
}

func (s *Store) SetActive(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = chatID
}

func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ReplaceChats swaps in the chat list wholesale from a REST load. Loaded
// threads are kept; summaries for chats the server no longer returns are
// dropped.
func (s *Store) ReplaceChats(chats []entity.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats = make(map[string]*entity.Chat, len(chats))
	for i := range chats {
		chat := chats[i]
		s.chats[chat.ID] = &chat
	}
}

// Chats returns the conversation list ordered by recency.
func (s *Store) Chats() []entity.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Chat, 0, len(s.chats))
	for _, chat := range s.chats {
		out = append(out, *chat)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Chat(chatID string) (entity.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return entity.Chat{}, false
	}
	return *chat, true
}

// TotalUnread is the aggregate badge count over all conversations.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, chat := range s.chats {
		total += chat.UnreadCount
	}
	return total
}

// ReplaceThread installs history loaded over REST. Unresolved optimistic
// entries are carried over so an in-flight send is not lost by a reload.
func (s *Store) ReplaceThread(chatID string, messages []entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var temps []string
	for _, id := range s.threads[chatID] {
		if msg, ok := s.messages[id]; ok && msg.IsTemp() {
			temps = append(temps, id)
		} else {
			delete(s.messages, id)
		}
	}
	s.threads[chatID] = nil

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	ids := make([]string, 0, len(messages)+len(temps))
	for i := range messages {
		msg := messages[i]
		s.messages[msg.ID] = &msg
		ids = append(ids, msg.ID)
	}
	ids = append(ids, temps...)
	s.threads[chatID] = ids
}

// Thread returns the ordered message sequence for one conversation.
func (s *Store) Thread(chatID string) []entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.threads[chatID]
	out := make([]entity.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := s.messages[id]; ok {
			out = append(out, *msg)
		}
	}
	return out
}

// ApplyNewMessage folds one inbound message into the store. A duplicate id
// is a no-op; a matching correlation id replaces the optimistic entry in
// place. Dedup is by id only, never by content: two identical texts sent
// close together are both kept. Reports whether the store changed.
func (s *Store) ApplyNewMessage(msg entity.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.ID]; ok {
		return false
	}

	chat := s.ensureChat(msg.ChatID)

	if msg.SenderID != s.viewerID && msg.ChatID == s.active {
		// The open conversation is implicitly read.
		msg.IsRead = true
	}

	if tempID, ok := s.byCorrelation[msg.CorrelationID]; ok && msg.CorrelationID != "" {
		if temp, exists := s.messages[tempID]; exists && temp.ChatID == msg.ChatID {
			s.replaceInPlace(msg.ChatID, tempID, msg)
			delete(s.byCorrelation, msg.CorrelationID)
			s.updatePreview(chat, &msg)
			return true
		}
		delete(s.byCorrelation, msg.CorrelationID)
	}

	s.messages[msg.ID] = &msg
	s.insertOrdered(msg.ChatID, msg.ID)
	s.updatePreview(chat, &msg)

	if msg.SenderID != s.viewerID && msg.ChatID != s.active {
		chat.UnreadCount++
	}
	return true
}

// AppendTemp records an optimistic send: a placeholder message at the end of
// the thread, indexed by its correlation id, with the list preview updated
// regardless of delivery path.
func (s *Store) AppendTemp(msg entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.ID] = &msg
	s.threads[msg.ChatID] = append(s.threads[msg.ChatID], msg.ID)
	if msg.CorrelationID != "" {
		s.byCorrelation[msg.CorrelationID] = msg.ID
	}
	s.updatePreview(s.ensureChat(msg.ChatID), &msg)
}

// ResolveTemp swaps a placeholder for the authoritative message from the
// REST response. If the socket echo already delivered it, the placeholder is
// simply dropped.
func (s *Store) ResolveTemp(chatID, tempID string, authoritative entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byCorrelation, authoritative.CorrelationID)

	if _, ok := s.messages[authoritative.ID]; ok {
		s.removeMessage(chatID, tempID)
		return
	}
	if _, ok := s.messages[tempID]; !ok {
		s.messages[authoritative.ID] = &authoritative
		s.insertOrdered(chatID, authoritative.ID)
		s.updatePreview(s.ensureChat(chatID), &authoritative)
		return
	}
	s.replaceInPlace(chatID, tempID, authoritative)
	s.updatePreview(s.ensureChat(chatID), &authoritative)
}

// RemoveTemp rolls back an optimistic entry (send failure or expiry).
// Reports whether the placeholder was still present.
func (s *Store) RemoveTemp(chatID, tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[tempID]
	if !ok || !msg.IsTemp() {
		return false
	}
	delete(s.byCorrelation, msg.CorrelationID)
	s.removeMessage(chatID, tempID)
	return true
}

// ApplyMessagesRead handles a counterparty read receipt: every viewer-authored
// message not yet read flips in one bulk transition.
func (s *Store) ApplyMessagesRead(chatID, readBy string) {
	if readBy == s.viewerID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range s.threads[chatID] {
		msg, ok := s.messages[id]
		if !ok || msg.SenderID != s.viewerID || msg.IsRead {
			continue
		}
		msg.IsRead = true
		readAt := now
		msg.ReadAt = &readAt
	}

	if chat, ok := s.chats[chatID]; ok && chat.LastMessage != nil && chat.LastMessage.SenderID == s.viewerID {
		chat.LastMessage.IsRead = true
	}
}

// MarkChatRead zeroes the unread counter and flips counterparty messages to
// read, exactly once per open action.
func (s *Store) MarkChatRead(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat, ok := s.chats[chatID]; ok {
		chat.UnreadCount = 0
		if chat.LastMessage != nil && chat.LastMessage.SenderID != s.viewerID {
			chat.LastMessage.IsRead = true
		}
	}

	for _, id := range s.threads[chatID] {
		if msg, ok := s.messages[id]; ok && msg.SenderID != s.viewerID {
			msg.IsRead = true
		}
	}
}

// callers hold s.mu

func (s *Store) ensureChat(chatID string) *entity.Chat {
	chat, ok := s.chats[chatID]
	if !ok {
		// First message of a server-created conversation we have not listed
		// yet; a later list refresh fills in the business summary.
		chat = &entity.Chat{ID: chatID, CreatedAt: time.Now()}
		s.chats[chatID] = chat
	}
	return chat
}

func (s *Store) insertOrdered(chatID, msgID string) {
	ids := s.threads[chatID]
	msg := s.messages[msgID]

	i := len(ids)
	for i > 0 {
		prev, ok := s.messages[ids[i-1]]
		if !ok || !prev.CreatedAt.After(msg.CreatedAt) {
			break // ties keep arrival order
		}
		i--
	}

	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = msgID
	s.threads[chatID] = ids
}

func (s *Store) replaceInPlace(chatID, oldID string, msg entity.Message) {
	delete(s.messages, oldID)
	s.messages[msg.ID] = &msg

	ids := s.threads[chatID]
	for i, id := range ids {
		if id == oldID {
			ids[i] = msg.ID
			return
		}
	}
	// placeholder already gone (expired); fall back to ordered insert
	s.insertOrdered(chatID, msg.ID)
}

func (s *Store) removeMessage(chatID, msgID string) {
	delete(s.messages, msgID)
	ids := s.threads[chatID]
	for i, id := range ids {
		if id == msgID {
			s.threads[chatID] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (s *Store) updatePreview(chat *entity.Chat, msg *entity.Message) {
	if chat.LastMessage == nil || !msg.CreatedAt.Before(chat.LastMessage.CreatedAt) {
		chat.LastMessage = &entity.MessagePreview{
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
			SenderID:  msg.SenderID,
			IsRead:    msg.IsRead,
		}
	}
	if msg.CreatedAt.After(chat.UpdatedAt) {
		chat.UpdatedAt = msg.CreatedAt
	}
}
