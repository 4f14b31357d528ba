package usecase

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"townsq/internal/domain/entity"
	ws "townsq/internal/infrastructure/websocket"
	"townsq/pkg/logger"
)

// MessengerOptions carries the tunables of the client state machines.
type MessengerOptions struct {
	TypingDebounce time.Duration
	TypingTTL      time.Duration
	SendExpiry     time.Duration
}

// Messenger wires the transport, the REST client, and the state machines
// into the single facade a UI talks to.
type Messenger struct {
	store     *Store
	api       ChatAPI
	transport Transport
	notifier  Notifier

	Inbox  *InboxUseCase
	Thread *ThreadUseCase
	Typing *TypingUseCase

	// generation tags each selection so a history response arriving after the
	// viewer has moved on is discarded instead of applied.
	generation atomic.Int64

	unsubs []func()
}

func NewMessenger(viewerID string, api ChatAPI, transport Transport, notifier Notifier, opts MessengerOptions) *Messenger {
	store := NewStore(viewerID)
	typing := NewTypingUseCase(store, transport, opts.TypingDebounce, opts.TypingTTL)

	m := &Messenger{
		store:     store,
		api:       api,
		transport: transport,
		notifier:  notifier,
		Inbox:     NewInboxUseCase(store, api),
		Thread:    NewThreadUseCase(store, api, transport, typing, opts.SendExpiry),
		Typing:    typing,
	}
	m.subscribe()
	return m
}

func (m *Messenger) subscribe() {
	m.unsubs = append(m.unsubs,
		m.transport.On(ws.EventNewMessage, m.onNewMessage),
		m.transport.On(ws.EventMessageNotification, m.onNotification),
		m.transport.On(ws.EventUserTyping, m.onTyping),
		m.transport.On(ws.EventUserStoppedTyping, m.onStoppedTyping),
		m.transport.On(ws.EventMessagesRead, m.onMessagesRead),
	)
}

// Close detaches the messenger from the transport. The socket itself is
// owned by the caller.
func (m *Messenger) Close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
}

func (m *Messenger) onNewMessage(data json.RawMessage) {
	var message entity.Message
	if err := json.Unmarshal(data, &message); err != nil {
		logger.Warn("Messenger: malformed new-message payload: %v", err)
		return
	}
	m.store.ApplyNewMessage(message)
}

func (m *Messenger) onNotification(data json.RawMessage) {
	var notification ws.NotificationData
	if err := json.Unmarshal(data, &notification); err != nil {
		logger.Warn("Messenger: malformed message-notification payload: %v", err)
		return
	}

	changed := m.store.ApplyNewMessage(notification.Message)

	if notification.Message.SenderID == m.store.ViewerID() {
		return
	}
	if notification.ChatID == m.store.Active() {
		return
	}
	if changed && m.notifier != nil {
		chat, _ := m.store.Chat(notification.ChatID)
		m.notifier.Notify(&chat, notification.Message)
	}
}

func (m *Messenger) onTyping(data json.RawMessage) {
	var typing ws.TypingData
	if err := json.Unmarshal(data, &typing); err != nil {
		logger.Warn("Messenger: malformed user-typing payload: %v", err)
		return
	}
	m.Typing.HandleTyping(typing)
}

func (m *Messenger) onStoppedTyping(data json.RawMessage) {
	var typing ws.TypingData
	if err := json.Unmarshal(data, &typing); err != nil {
		logger.Warn("Messenger: malformed user-stopped-typing payload: %v", err)
		return
	}
	m.Typing.HandleStoppedTyping(typing)
}

func (m *Messenger) onMessagesRead(data json.RawMessage) {
	var read ws.MessagesReadData
	if err := json.Unmarshal(data, &read); err != nil {
		logger.Warn("Messenger: malformed messages-read payload: %v", err)
		return
	}
	m.store.ApplyMessagesRead(read.ChatID, read.ReadBy)
}

// SelectChat opens a conversation: leaves the previous room, joins the new
// one, zeroes the unread counter, confirms the read over REST and the
// socket, and loads history. A stale history response for a superseded
// selection is discarded.
func (m *Messenger) SelectChat(ctx context.Context, chatID string) error {
	gen := m.generation.Add(1)

	prev := m.store.Active()
	if prev != "" && prev != chatID {
		m.transport.LeaveChat(prev)
	}
	if prev != chatID {
		m.Typing.ClearRemote()
	}

	m.store.SetActive(chatID)
	m.transport.JoinChat(chatID)
	m.store.MarkChatRead(chatID)

	if err := m.api.MarkAsRead(ctx, chatID); err != nil {
		logger.Warn("Messenger: mark-as-read failed for chat %s: %v", chatID, err)
	}
	if err := m.transport.MarkAsRead(chatID); err != nil {
		logger.Debug("Messenger: socket mark-as-read deferred for chat %s: %v", chatID, err)
	}

	messages, err := m.api.GetMessages(ctx, chatID)
	if err != nil {
		return err
	}

	if m.generation.Load() != gen {
		logger.Debug("Messenger: discarding stale history for chat %s", chatID)
		return nil
	}
	m.store.ReplaceThread(chatID, messages)
	return nil
}

// Deselect returns to the list view, cancelling interest in the open room.
func (m *Messenger) Deselect() {
	m.generation.Add(1)
	if active := m.store.Active(); active != "" {
		m.transport.LeaveChat(active)
	}
	m.Typing.ClearRemote()
	m.store.SetActive("")
}

func (m *Messenger) ActiveChat() string {
	return m.store.Active()
}

// Send dispatches a message to the open conversation.
func (m *Messenger) Send(ctx context.Context, content string, attachments []string) error {
	return m.Thread.Send(ctx, m.store.Active(), content, attachments)
}

// Keystroke forwards a compose-box keystroke for the open conversation.
func (m *Messenger) Keystroke() {
	if active := m.store.Active(); active != "" {
		m.Typing.Keystroke(active)
	}
}

func (m *Messenger) ThreadMessages() []entity.Message {
	return m.store.Thread(m.store.Active())
}

func (m *Messenger) Store() *Store {
	return m.store
}
