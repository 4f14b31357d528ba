package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townsq/internal/domain/entity"
	ws "townsq/internal/infrastructure/websocket"
	"townsq/pkg/errors"
)

func messengerFixture(t *testing.T) (*Messenger, *fakeTransport, *fakeAPI, *recordingNotifier) {
	t.Helper()
	api := newFakeAPI()
	transport := newFakeTransport(true)
	notifier := &recordingNotifier{}
	m := NewMessenger("viewer", api, transport, notifier, MessengerOptions{
		TypingDebounce: 30 * time.Millisecond,
		SendExpiry:     time.Second,
	})
	t.Cleanup(m.Close)
	return m, transport, api, notifier
}

func TestSelectChatJoinsRoomAndClearsUnread(t *testing.T) {
	m, transport, api, _ := messengerFixture(t)
	m.Store().ReplaceChats([]entity.Chat{{ID: "c1", UnreadCount: 4}})
	api.messages["c1"] = []entity.Message{
		{ID: "m1", ChatID: "c1", SenderID: "biz", Content: "hello", CreatedAt: time.Now()},
	}

	require.NoError(t, m.SelectChat(context.Background(), "c1"))

	chat, _ := m.Store().Chat("c1")
	assert.Equal(t, 0, chat.UnreadCount)
	assert.Equal(t, []string{"c1"}, transport.joined)
	assert.Equal(t, []string{"c1"}, transport.markedRead, "read confirmed over the socket")
	assert.Equal(t, []string{"c1"}, api.markCalls, "read confirmed over REST")
	assert.Len(t, m.ThreadMessages(), 1)
}

func TestSelectChatLeavesPreviousRoom(t *testing.T) {
	m, transport, _, _ := messengerFixture(t)

	require.NoError(t, m.SelectChat(context.Background(), "c1"))
	require.NoError(t, m.SelectChat(context.Background(), "c2"))

	assert.Equal(t, []string{"c1"}, transport.left)
	assert.Equal(t, []string{"c1", "c2"}, transport.joined)
	assert.Equal(t, "c2", m.ActiveChat())
}

func TestSelectChatDiscardsStaleHistory(t *testing.T) {
	m, _, api, _ := messengerFixture(t)
	api.messages["c1"] = []entity.Message{
		{ID: "old", ChatID: "c1", SenderID: "biz", Content: "stale", CreatedAt: time.Now()},
	}
	api.messages["c2"] = []entity.Message{
		{ID: "new", ChatID: "c2", SenderID: "biz", Content: "fresh", CreatedAt: time.Now()},
	}

	gate := make(chan struct{})
	api.mu.Lock()
	api.messagesGate = gate
	api.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- m.SelectChat(context.Background(), "c1")
	}()

	// The viewer moves on before c1's history arrives.
	assert.Eventually(t, func() bool { return m.ActiveChat() == "c1" }, time.Second, time.Millisecond)
	go func() {
		_ = m.SelectChat(context.Background(), "c2")
	}()
	assert.Eventually(t, func() bool { return m.ActiveChat() == "c2" }, time.Second, time.Millisecond)

	close(gate)
	require.NoError(t, <-firstDone)

	assert.Empty(t, m.Store().Thread("c1"), "superseded history response is discarded")
	assert.Eventually(t, func() bool {
		return len(m.Store().Thread("c2")) == 1
	}, time.Second, time.Millisecond)
}

func TestInboundMessageForClosedChatIncrementsBadge(t *testing.T) {
	m, transport, _, _ := messengerFixture(t)
	m.Store().ReplaceChats([]entity.Chat{{ID: "open"}, {ID: "closed"}})
	require.NoError(t, m.SelectChat(context.Background(), "open"))

	transport.emit(t, ws.EventNewMessage, entity.Message{
		ID: "m1", ChatID: "closed", SenderID: "biz", Content: "psst", CreatedAt: time.Now(),
	})

	closed, _ := m.Store().Chat("closed")
	assert.Equal(t, 1, closed.UnreadCount)
	assert.Empty(t, m.ThreadMessages(), "open thread is untouched")
}

func TestInboundMessageForOpenChatAppendsWithoutUnread(t *testing.T) {
	m, transport, _, _ := messengerFixture(t)
	m.Store().ReplaceChats([]entity.Chat{{ID: "c1"}})
	require.NoError(t, m.SelectChat(context.Background(), "c1"))

	transport.emit(t, ws.EventNewMessage, entity.Message{
		ID: "m1", ChatID: "c1", SenderID: "biz", Content: "hi", CreatedAt: time.Now(),
	})

	chat, _ := m.Store().Chat("c1")
	assert.Equal(t, 0, chat.UnreadCount)
	msgs := m.ThreadMessages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsRead, "the open conversation is implicitly read")
}

func TestNotificationFiresOnlyForClosedChatsAndOtherSenders(t *testing.T) {
	m, transport, _, notifier := messengerFixture(t)
	m.Store().ReplaceChats([]entity.Chat{{ID: "open"}, {ID: "closed"}})
	require.NoError(t, m.SelectChat(context.Background(), "open"))

	at := time.Now()
	transport.emit(t, ws.EventMessageNotification, ws.NotificationData{
		ChatID:  "closed",
		Message: entity.Message{ID: "m1", ChatID: "closed", SenderID: "biz", Content: "new offer", CreatedAt: at},
	})
	transport.emit(t, ws.EventMessageNotification, ws.NotificationData{
		ChatID:  "open",
		Message: entity.Message{ID: "m2", ChatID: "open", SenderID: "biz", Content: "hi", CreatedAt: at},
	})
	transport.emit(t, ws.EventMessageNotification, ws.NotificationData{
		ChatID:  "closed",
		Message: entity.Message{ID: "m3", ChatID: "closed", SenderID: "viewer", Content: "mine", CreatedAt: at},
	})
	// Duplicate delivery of m1 must not notify twice.
	transport.emit(t, ws.EventMessageNotification, ws.NotificationData{
		ChatID:  "closed",
		Message: entity.Message{ID: "m1", ChatID: "closed", SenderID: "biz", Content: "new offer", CreatedAt: at},
	})

	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, "m1", notifier.calls[0].ID)
}

func TestReadReceiptEventFlipsViewerMessages(t *testing.T) {
	m, transport, _, _ := messengerFixture(t)
	m.Store().ApplyNewMessage(entity.Message{
		ID: "m1", ChatID: "c1", SenderID: "viewer", Content: "seen yet?", CreatedAt: time.Now(),
	})

	transport.emit(t, ws.EventMessagesRead, ws.MessagesReadData{ChatID: "c1", ReadBy: "biz"})

	assert.True(t, m.Store().Thread("c1")[0].IsRead)
}

func TestTypingEventsFlowThroughToTypists(t *testing.T) {
	m, transport, _, _ := messengerFixture(t)
	require.NoError(t, m.SelectChat(context.Background(), "c1"))

	transport.emit(t, ws.EventUserTyping, ws.TypingData{ChatID: "c1", UserID: "op-1"})
	assert.Equal(t, []string{"op-1"}, m.Typing.Typists())

	transport.emit(t, ws.EventUserStoppedTyping, ws.TypingData{ChatID: "c1", UserID: "op-1"})
	assert.Empty(t, m.Typing.Typists())
}

func TestSwitchingChatsClearsTypists(t *testing.T) {
	m, transport, _, _ := messengerFixture(t)
	require.NoError(t, m.SelectChat(context.Background(), "c1"))
	transport.emit(t, ws.EventUserTyping, ws.TypingData{ChatID: "c1", UserID: "op-1"})
	require.NotEmpty(t, m.Typing.Typists())

	require.NoError(t, m.SelectChat(context.Background(), "c2"))

	assert.Empty(t, m.Typing.Typists())
}

func TestDeselectLeavesRoomAndStopsApplyingHistory(t *testing.T) {
	m, transport, api, _ := messengerFixture(t)
	api.messages["c1"] = []entity.Message{
		{ID: "m1", ChatID: "c1", SenderID: "biz", Content: "hi", CreatedAt: time.Now()},
	}

	gate := make(chan struct{})
	api.mu.Lock()
	api.messagesGate = gate
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- m.SelectChat(context.Background(), "c1")
	}()
	assert.Eventually(t, func() bool { return m.ActiveChat() == "c1" }, time.Second, time.Millisecond)

	m.Deselect()
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, "", m.ActiveChat())
	assert.Equal(t, []string{"c1"}, transport.left)
	assert.Empty(t, m.Store().Thread("c1"), "history for an abandoned selection is discarded")
}

func TestSendWithoutOpenConversationIsRejected(t *testing.T) {
	m, transport, _, _ := messengerFixture(t)

	err := m.Send(context.Background(), "hello?", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
	assert.Empty(t, transport.sent)
	assert.Empty(t, m.Store().Chats(), "no phantom conversation is minted")
}

func TestCloseDetachesFromTransport(t *testing.T) {
	api := newFakeAPI()
	transport := newFakeTransport(true)
	notifier := &recordingNotifier{}
	m := NewMessenger("viewer", api, transport, notifier, MessengerOptions{})

	m.Close()

	transport.emit(t, ws.EventNewMessage, entity.Message{
		ID: "m1", ChatID: "c1", SenderID: "biz", Content: "hi", CreatedAt: time.Now(),
	})
	assert.Empty(t, m.Store().Thread("c1"))
}
