package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gorillaws "github.com/gorilla/websocket"

	"townsq/internal/domain/service"
	"townsq/pkg/errors"
	"townsq/pkg/logger"
)

// ErrNotConnected is returned by outbound commands while the socket is down,
// so callers can fall back to REST.
var ErrNotConnected = errors.Unavailable("socket not connected", nil)

// Handler receives the raw payload of one inbound event.
type Handler func(data json.RawMessage)

// Socket is the client side of the live channel. It scopes inbound events to
// joined chat rooms, reconnects with backoff, and re-joins rooms after a
// reconnect. Consumers must tolerate IsConnected flipping at any time; no
// delivery ordering is guaranteed across reconnects.
type Socket struct {
	url    string
	tokens service.TokenProvider

	mu        sync.RWMutex
	conn      *gorillaws.Conn
	connected bool
	joined    map[string]struct{}
	handlers  map[string]map[int]Handler
	nextSub   int

	// gorilla allows a single concurrent writer per connection
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSocket(url string, tokens service.TokenProvider) *Socket {
	return &Socket{
		url:      url,
		tokens:   tokens,
		joined:   make(map[string]struct{}),
		handlers: make(map[string]map[int]Handler),
	}
}

// Connect dials the socket server and starts the read loop. A failed first
// dial is reported to the caller (who falls back to REST) but retries keep
// running in the background; from then on connection loss is handled
// internally with backoff until Close is called.
func (s *Socket) Connect(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	if err := s.dial(); err != nil {
		go s.reconnect()
		return err
	}
	return nil
}

func (s *Socket) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Socket) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Socket) dial() error {
	token, err := s.tokens.Token()
	if err != nil {
		return errors.Unauthorized("failed to resolve session credential", err)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := gorillaws.DefaultDialer.DialContext(s.ctx, s.url, header)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	rooms := make([]string, 0, len(s.joined))
	for chatID := range s.joined {
		rooms = append(rooms, chatID)
	}
	s.mu.Unlock()

	// Room membership survives reconnects.
	for _, chatID := range rooms {
		if err := s.write(CommandJoinChat, chatID, nil); err != nil {
			logger.Warn("Socket: failed to re-join chat %s: %v", chatID, err)
		}
	}

	go s.readPump(conn)
	return nil
}

func (s *Socket) readPump(conn *gorillaws.Conn) {
	defer s.markDisconnected(conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseNormalClosure) {
				logger.Warn("Socket: read error: %v", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Warn("Socket: dropping malformed frame: %v", err)
			continue
		}

		s.dispatch(env.Type, env.Data)
	}
}

func (s *Socket) markDisconnected(conn *gorillaws.Conn) {
	s.mu.Lock()
	// An old pump must not clobber a newer connection.
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	conn.Close()

	if s.ctx.Err() != nil {
		return
	}
	go s.reconnect()
}

func (s *Socket) reconnect() {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		return s.dial()
	}, backoff.WithContext(policy, s.ctx))
	if err != nil && s.ctx.Err() == nil {
		logger.Error("Socket: reconnect abandoned: %v", err)
	}
}

// On registers a handler for an inbound event and returns its unsubscribe
// func. Multiple handlers per event are independent of each other.
func (s *Socket) On(event string, h func(data json.RawMessage)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers[event] == nil {
		s.handlers[event] = make(map[int]Handler)
	}
	id := s.nextSub
	s.nextSub++
	s.handlers[event][id] = h

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers[event], id)
	}
}

func (s *Socket) dispatch(event string, data json.RawMessage) {
	s.mu.RLock()
	snapshot := make([]Handler, 0, len(s.handlers[event]))
	for _, h := range s.handlers[event] {
		snapshot = append(snapshot, h)
	}
	s.mu.RUnlock()

	for _, h := range snapshot {
		h(data)
	}
}

// JoinChat records interest in a chat room. Joining an already-joined room is
// a no-op.
func (s *Socket) JoinChat(chatID string) {
	s.mu.Lock()
	if _, ok := s.joined[chatID]; ok {
		s.mu.Unlock()
		return
	}
	s.joined[chatID] = struct{}{}
	s.mu.Unlock()

	if err := s.write(CommandJoinChat, chatID, nil); err != nil {
		logger.Debug("Socket: join for chat %s deferred: %v", chatID, err)
	}
}

// LeaveChat drops interest in a chat room. Leaving a never-joined room is a
// no-op.
func (s *Socket) LeaveChat(chatID string) {
	s.mu.Lock()
	if _, ok := s.joined[chatID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.joined, chatID)
	s.mu.Unlock()

	if err := s.write(CommandLeaveChat, chatID, nil); err != nil {
		logger.Debug("Socket: leave for chat %s dropped: %v", chatID, err)
	}
}

// SendMessage is fire-and-forget; the caller observes the resulting
// new-message event (matched by correlation id) instead of a return value.
func (s *Socket) SendMessage(chatID, content, msgType string, attachments []string, correlationID string) error {
	return s.write(CommandSendMessage, chatID, SendMessageData{
		ChatID:        chatID,
		Content:       content,
		Type:          msgType,
		Attachments:   attachments,
		CorrelationID: correlationID,
	})
}

func (s *Socket) StartTyping(chatID string) error {
	return s.write(CommandStartTyping, chatID, nil)
}

func (s *Socket) StopTyping(chatID string) error {
	return s.write(CommandStopTyping, chatID, nil)
}

func (s *Socket) MarkAsRead(chatID string) error {
	return s.write(CommandMarkAsRead, chatID, nil)
}

func (s *Socket) write(msgType, chatID string, data interface{}) error {
	env, err := newEnvelope(msgType, chatID, data)
	if err != nil {
		return errors.Internal("failed to encode socket frame", err)
	}

	s.mu.RLock()
	conn, connected := s.conn, s.connected
	s.mu.RUnlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(env)
}
