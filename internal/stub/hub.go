package stub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"townsq/internal/domain/entity"
	"townsq/internal/infrastructure/ratelimit"
	ws "townsq/internal/infrastructure/websocket"
	"townsq/pkg/logger"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // stub only runs locally
	},
}

type client struct {
	userID string
	conn   *gorillaws.Conn
	send   chan []byte
}

// Hub owns the stub's socket connections and chat rooms and fans the chat
// events out to them.
type Hub struct {
	data    *Dataset
	limiter *ratelimit.RateLimiter

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]bool
}

func NewHub(data *Dataset) *Hub {
	limiter := ratelimit.NewRateLimiter()
	limiter.StartCleanupRoutine()

	return &Hub{
		data:    data,
		limiter: limiter,
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]bool),
	}
}

// ServeWS upgrades the request and runs the connection's pumps.
func (h *Hub) ServeWS(c echo.Context, userID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
	}

	h.mu.Lock()
	if old, ok := h.clients[userID]; ok {
		close(old.send)
	}
	h.clients[userID] = cl
	h.mu.Unlock()
	logger.Info("Hub: client connected: %s", userID)

	go cl.writePump()
	go h.readPump(cl)
	return nil
}

func (h *Hub) readPump(cl *client) {
	defer h.unregister(cl)

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseNormalClosure) {
				logger.Warn("Hub: read error from %s: %v", cl.userID, err)
			}
			return
		}

		var env ws.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Warn("Hub: malformed frame from %s: %v", cl.userID, err)
			continue
		}
		h.handleCommand(cl, env)
	}
}

func (h *Hub) handleCommand(cl *client, env ws.Envelope) {
	switch env.Type {
	case ws.CommandJoinChat:
		if !h.data.IsParticipant(env.ChatID, cl.userID) {
			return
		}
		h.mu.Lock()
		if h.rooms[env.ChatID] == nil {
			h.rooms[env.ChatID] = make(map[string]bool)
		}
		h.rooms[env.ChatID][cl.userID] = true
		h.mu.Unlock()

	case ws.CommandLeaveChat:
		h.mu.Lock()
		delete(h.rooms[env.ChatID], cl.userID)
		h.mu.Unlock()

	case ws.CommandSendMessage:
		if allowed, wait := h.limiter.Allow(cl.userID, "send_message"); !allowed {
			logger.Warn("Hub: send from %s rate limited for %v", cl.userID, wait)
			return
		}
		var data ws.SendMessageData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			logger.Warn("Hub: invalid sendMessage payload from %s: %v", cl.userID, err)
			return
		}
		message, others, err := h.data.AppendMessage(data.ChatID, cl.userID, data.Content, data.Attachments, data.CorrelationID)
		if err != nil {
			logger.Warn("Hub: sendMessage from %s rejected: %v", cl.userID, err)
			return
		}
		h.PublishMessage(message, others)

	case ws.CommandStartTyping:
		if allowed, _ := h.limiter.Allow(cl.userID, "typing"); !allowed {
			return
		}
		h.broadcastToRoom(env.ChatID, cl.userID, ws.EventUserTyping, ws.TypingData{
			UserID: cl.userID,
			ChatID: env.ChatID,
		})

	case ws.CommandStopTyping:
		h.broadcastToRoom(env.ChatID, cl.userID, ws.EventUserStoppedTyping, ws.TypingData{
			UserID: cl.userID,
			ChatID: env.ChatID,
		})

	case ws.CommandMarkAsRead:
		if err := h.data.MarkRead(env.ChatID, cl.userID); err != nil {
			logger.Warn("Hub: markAsRead from %s rejected: %v", cl.userID, err)
			return
		}
		h.PublishRead(env.ChatID, cl.userID)

	default:
		logger.Warn("Hub: unknown command %q from %s", env.Type, cl.userID)
	}
}

// PublishMessage emits new-message to the chat room and message-notification
// to participants who do not have the room open. Shared with the REST send
// path so both deliver the same events.
func (h *Hub) PublishMessage(message entity.Message, others []string) {
	h.broadcastToRoom(message.ChatID, "", ws.EventNewMessage, message)

	h.mu.RLock()
	room := h.rooms[message.ChatID]
	h.mu.RUnlock()

	for _, userID := range others {
		if room[userID] {
			continue
		}
		h.sendToUser(userID, ws.EventMessageNotification, ws.NotificationData{
			ChatID:  message.ChatID,
			Message: message,
		})
	}
}

// PublishRead emits messages-read to everyone in the room except the reader.
func (h *Hub) PublishRead(chatID, readBy string) {
	h.broadcastToRoom(chatID, readBy, ws.EventMessagesRead, ws.MessagesReadData{
		ChatID: chatID,
		ReadBy: readBy,
	})
}

func (h *Hub) broadcastToRoom(chatID, exceptUserID, event string, payload interface{}) {
	raw, err := marshalEnvelope(event, chatID, payload)
	if err != nil {
		logger.Error("Hub: failed to marshal %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID := range h.rooms[chatID] {
		if userID == exceptUserID {
			continue
		}
		if cl, ok := h.clients[userID]; ok {
			h.deliver(cl, raw)
		}
	}
}

func (h *Hub) sendToUser(userID, event string, payload interface{}) {
	raw, err := marshalEnvelope(event, "", payload)
	if err != nil {
		logger.Error("Hub: failed to marshal %s event: %v", event, err)
		return
	}

	// Hold the lock through the channel send so unregister cannot close the
	// channel underneath it.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if cl, ok := h.clients[userID]; ok {
		h.deliver(cl, raw)
	}
}

func (h *Hub) deliver(cl *client, raw []byte) {
	select {
	case cl.send <- raw:
	default:
		logger.Warn("Hub: send buffer full for %s, dropping connection", cl.userID)
		go h.unregister(cl)
	}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if current, ok := h.clients[cl.userID]; ok && current == cl {
		delete(h.clients, cl.userID)
		close(cl.send)
	}
	for _, room := range h.rooms {
		delete(room, cl.userID)
	}
	h.mu.Unlock()

	cl.conn.Close()
	logger.Info("Hub: client disconnected: %s", cl.userID)
}

func (cl *client) writePump() {
	defer cl.conn.Close()

	for raw := range cl.send {
		if err := cl.conn.WriteMessage(gorillaws.TextMessage, raw); err != nil {
			logger.Warn("Hub: write error to %s: %v", cl.userID, err)
			return
		}
	}
	cl.conn.WriteMessage(gorillaws.CloseMessage, []byte{})
}

func marshalEnvelope(event, chatID string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ws.Envelope{
		Type:      event,
		Data:      raw,
		ChatID:    chatID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
