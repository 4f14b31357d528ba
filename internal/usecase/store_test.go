package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townsq/internal/domain/entity"
)

func message(id, chatID, senderID, content string, at time.Time) entity.Message {
	return entity.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: at,
	}
}

func TestApplyNewMessageDeduplicatesByID(t *testing.T) {
	store := NewStore("viewer")
	at := time.Now()

	assert.True(t, store.ApplyNewMessage(message("m1", "c1", "biz", "hello", at)))
	assert.False(t, store.ApplyNewMessage(message("m1", "c1", "biz", "hello", at)))

	assert.Len(t, store.Thread("c1"), 1)
}

func TestApplyNewMessageKeepsIdenticalContent(t *testing.T) {
	store := NewStore("viewer")
	at := time.Now()

	// Two identical texts sent close together are distinct messages.
	store.ApplyNewMessage(message("m1", "c1", "viewer", "ok", at))
	store.ApplyNewMessage(message("m2", "c1", "viewer", "ok", at.Add(time.Millisecond)))

	assert.Len(t, store.Thread("c1"), 2)
}

func TestThreadOrderingWithTies(t *testing.T) {
	store := NewStore("viewer")
	at := time.Now()

	store.ApplyNewMessage(message("m2", "c1", "biz", "second", at.Add(time.Second)))
	store.ApplyNewMessage(message("m1", "c1", "biz", "first", at))
	// same timestamp as m2: arrival order breaks the tie
	store.ApplyNewMessage(message("m3", "c1", "biz", "third", at.Add(time.Second)))

	thread := store.Thread("c1")
	require.Len(t, thread, 3)
	assert.Equal(t, "m1", thread[0].ID)
	assert.Equal(t, "m2", thread[1].ID)
	assert.Equal(t, "m3", thread[2].ID)
}

func TestUnreadCountsOnlyForOtherSendersAndClosedChats(t *testing.T) {
	store := NewStore("viewer")
	store.ReplaceChats([]entity.Chat{{ID: "open"}, {ID: "closed"}})
	store.SetActive("open")
	at := time.Now()

	store.ApplyNewMessage(message("m1", "open", "biz", "hi", at))
	store.ApplyNewMessage(message("m2", "closed", "biz", "hi", at))
	store.ApplyNewMessage(message("m3", "closed", "viewer", "mine", at.Add(time.Second)))

	open, _ := store.Chat("open")
	closed, _ := store.Chat("closed")
	assert.Equal(t, 0, open.UnreadCount, "open conversation is implicitly read")
	assert.Equal(t, 1, closed.UnreadCount, "own messages never count as unread")
	assert.Equal(t, 1, store.TotalUnread())
}

func TestPreviewAndThreadNeverDiverge(t *testing.T) {
	store := NewStore("viewer")
	store.ReplaceChats([]entity.Chat{{ID: "c1"}})
	at := time.Now()

	store.ApplyNewMessage(message("m1", "c1", "biz", "latest", at))

	chat, ok := store.Chat("c1")
	require.True(t, ok)
	require.NotNil(t, chat.LastMessage)
	thread := store.Thread("c1")
	require.NotEmpty(t, thread)
	assert.Equal(t, thread[len(thread)-1].Content, chat.LastMessage.Content)
	assert.Equal(t, at, chat.UpdatedAt)
}

func TestCorrelationReplacesTempInPlace(t *testing.T) {
	store := NewStore("viewer")
	at := time.Now()

	store.ApplyNewMessage(message("m1", "c1", "biz", "before", at))
	temp := message(entity.TempID("corr-1"), "c1", "viewer", "hello", at.Add(time.Second))
	temp.CorrelationID = "corr-1"
	store.AppendTemp(temp)

	echo := message("m2", "c1", "viewer", "hello", at.Add(2*time.Second))
	echo.CorrelationID = "corr-1"
	assert.True(t, store.ApplyNewMessage(echo))

	thread := store.Thread("c1")
	require.Len(t, thread, 2)
	assert.Equal(t, "m2", thread[1].ID)
	assert.False(t, thread[1].IsTemp())
}

func TestResolveTempAfterEchoDropsPlaceholder(t *testing.T) {
	store := NewStore("viewer")
	at := time.Now()

	temp := message(entity.TempID("corr-1"), "c1", "viewer", "hello", at)
	temp.CorrelationID = "corr-1"
	store.AppendTemp(temp)

	echo := message("m1", "c1", "viewer", "hello", at.Add(time.Second))
	echo.CorrelationID = "corr-1"
	store.ApplyNewMessage(echo)

	// REST response arrives after the socket already delivered the message.
	store.ResolveTemp("c1", temp.ID, echo)

	thread := store.Thread("c1")
	require.Len(t, thread, 1)
	assert.Equal(t, "m1", thread[0].ID)
}

func TestRemoveTempRollsBack(t *testing.T) {
	store := NewStore("viewer")
	temp := message(entity.TempID("corr-1"), "c1", "viewer", "hello", time.Now())
	temp.CorrelationID = "corr-1"
	store.AppendTemp(temp)

	assert.True(t, store.RemoveTemp("c1", temp.ID))
	assert.Empty(t, store.Thread("c1"))
	assert.False(t, store.RemoveTemp("c1", temp.ID), "second removal is a no-op")
}

func TestApplyMessagesReadFlipsViewerMessagesInBulk(t *testing.T) {
	store := NewStore("viewer")
	at := time.Now()

	store.ApplyNewMessage(message("m1", "c1", "viewer", "one", at))
	store.ApplyNewMessage(message("m2", "c1", "viewer", "two", at.Add(time.Second)))
	store.ApplyNewMessage(message("m3", "c1", "biz", "reply", at.Add(2*time.Second)))

	store.ApplyMessagesRead("c1", "biz")

	thread := store.Thread("c1")
	assert.True(t, thread[0].IsRead)
	assert.NotNil(t, thread[0].ReadAt)
	assert.True(t, thread[1].IsRead)
	assert.False(t, thread[2].IsRead, "counterparty messages are untouched")
}

func TestApplyMessagesReadIgnoresSelfReceipts(t *testing.T) {
	store := NewStore("viewer")
	store.ApplyNewMessage(message("m1", "c1", "viewer", "one", time.Now()))

	store.ApplyMessagesRead("c1", "viewer")

	assert.False(t, store.Thread("c1")[0].IsRead)
}

func TestMarkChatReadZeroesCounter(t *testing.T) {
	store := NewStore("viewer")
	store.ReplaceChats([]entity.Chat{{ID: "c1", UnreadCount: 3}})
	store.ApplyNewMessage(message("m1", "c1", "biz", "hi", time.Now()))

	store.MarkChatRead("c1")

	chat, _ := store.Chat("c1")
	assert.Equal(t, 0, chat.UnreadCount)
	assert.True(t, store.Thread("c1")[0].IsRead)
}

func TestReplaceThreadKeepsUnresolvedTemp(t *testing.T) {
	store := NewStore("viewer")
	at := time.Now()

	temp := message(entity.TempID("corr-1"), "c1", "viewer", "in flight", at)
	temp.CorrelationID = "corr-1"
	store.AppendTemp(temp)

	store.ReplaceThread("c1", []entity.Message{
		message("m1", "c1", "biz", "history", at.Add(-time.Minute)),
	})

	thread := store.Thread("c1")
	require.Len(t, thread, 2)
	assert.Equal(t, "m1", thread[0].ID)
	assert.True(t, thread[1].IsTemp())
}

func TestChatsOrderedByRecency(t *testing.T) {
	store := NewStore("viewer")
	at := time.Now()
	store.ReplaceChats([]entity.Chat{
		{ID: "older", UpdatedAt: at.Add(-time.Hour)},
		{ID: "newer", UpdatedAt: at},
	})

	chats := store.Chats()
	require.Len(t, chats, 2)
	assert.Equal(t, "newer", chats[0].ID)
}
