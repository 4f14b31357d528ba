package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"townsq/internal/domain/entity"
	ws "townsq/internal/infrastructure/websocket"
)

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string]map[int]func(json.RawMessage)
	nextSub   int

	joined     []string
	left       []string
	sent       []ws.SendMessageData
	starts     []string
	stops      []string
	markedRead []string

	sendErr error
}

func newFakeTransport(connected bool) *fakeTransport {
	return &fakeTransport{
		connected: connected,
		handlers:  make(map[string]map[int]func(json.RawMessage)),
	}
}

func (t *fakeTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) setConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
}

func (t *fakeTransport) JoinChat(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joined = append(t.joined, chatID)
}

func (t *fakeTransport) LeaveChat(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.left = append(t.left, chatID)
}

func (t *fakeTransport) SendMessage(chatID, content, msgType string, attachments []string, correlationID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, ws.SendMessageData{
		ChatID:        chatID,
		Content:       content,
		Type:          msgType,
		Attachments:   attachments,
		CorrelationID: correlationID,
	})
	return nil
}

func (t *fakeTransport) StartTyping(chatID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts = append(t.starts, chatID)
	return nil
}

func (t *fakeTransport) StopTyping(chatID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops = append(t.stops, chatID)
	return nil
}

func (t *fakeTransport) MarkAsRead(chatID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markedRead = append(t.markedRead, chatID)
	return nil
}

func (t *fakeTransport) On(event string, h func(data json.RawMessage)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handlers[event] == nil {
		t.handlers[event] = make(map[int]func(json.RawMessage))
	}
	id := t.nextSub
	t.nextSub++
	t.handlers[event][id] = h

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.handlers[event], id)
	}
}

func (t *fakeTransport) emit(tb testing.TB, event string, payload interface{}) {
	tb.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		tb.Fatalf("emit %s: %v", event, err)
	}

	t.mu.Lock()
	snapshot := make([]func(json.RawMessage), 0, len(t.handlers[event]))
	for _, h := range t.handlers[event] {
		snapshot = append(snapshot, h)
	}
	t.mu.Unlock()

	for _, h := range snapshot {
		h(raw)
	}
}

func (t *fakeTransport) stopCount(chatID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, id := range t.stops {
		if id == chatID {
			count++
		}
	}
	return count
}

type fakeAPI struct {
	mu sync.Mutex

	chats    []entity.Chat
	chatsErr error

	messages    map[string][]entity.Message
	messagesErr error
	// messagesGate, when set, blocks GetMessages until the channel closes.
	messagesGate chan struct{}

	markCalls []string

	sendFn   func(chatID, content string, attachments []string, correlationID string) (*entity.Message, error)
	createFn func(businessID string) (string, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{messages: make(map[string][]entity.Message)}
}

func (a *fakeAPI) GetChats(ctx context.Context) ([]entity.Chat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chatsErr != nil {
		return nil, a.chatsErr
	}
	return append([]entity.Chat(nil), a.chats...), nil
}

func (a *fakeAPI) GetMessages(ctx context.Context, chatID string) ([]entity.Message, error) {
	a.mu.Lock()
	gate := a.messagesGate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.messagesErr != nil {
		return nil, a.messagesErr
	}
	return append([]entity.Message(nil), a.messages[chatID]...), nil
}

func (a *fakeAPI) MarkAsRead(ctx context.Context, chatID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markCalls = append(a.markCalls, chatID)
	return nil
}

func (a *fakeAPI) SendMessage(ctx context.Context, chatID, content string, attachments []string, correlationID string) (*entity.Message, error) {
	a.mu.Lock()
	sendFn := a.sendFn
	a.mu.Unlock()
	if sendFn != nil {
		return sendFn(chatID, content, attachments, correlationID)
	}
	return nil, nil
}

func (a *fakeAPI) CreateChat(ctx context.Context, businessID string) (string, error) {
	a.mu.Lock()
	createFn := a.createFn
	a.mu.Unlock()
	if createFn != nil {
		return createFn(businessID)
	}
	return "chat-" + businessID, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []entity.Message
}

func (n *recordingNotifier) Notify(chat *entity.Chat, message entity.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}
