package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"townsq/internal/domain/entity"
	"townsq/pkg/errors"
	"townsq/pkg/logger"
)

// ThreadUseCase manages the open conversation's message sequence: optimistic
// send over the socket with correlation-id reconciliation, REST fallback
// while disconnected, and rollback with draft restore on failure.
type ThreadUseCase struct {
	store      *Store
	api        ChatAPI
	transport  Transport
	typing     *TypingUseCase
	sendExpiry time.Duration

	mu       sync.Mutex
	inflight map[string]bool
	drafts   map[string]string
}

func NewThreadUseCase(store *Store, api ChatAPI, transport Transport, typing *TypingUseCase, sendExpiry time.Duration) *ThreadUseCase {
	if sendExpiry <= 0 {
		sendExpiry = 10 * time.Second
	}
	return &ThreadUseCase{
		store:      store,
		api:        api,
		transport:  transport,
		typing:     typing,
		sendExpiry: sendExpiry,
		inflight:   make(map[string]bool),
		drafts:     make(map[string]string),
	}
}

// SetDraft mirrors the compose box content so a failed send can restore it.
func (uc *ThreadUseCase) SetDraft(chatID, text string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.drafts[chatID] = text
}

func (uc *ThreadUseCase) Draft(chatID string) string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.drafts[chatID]
}

// Send dispatches one message. The compose box is cleared and a placeholder
// appended before any network activity; the placeholder is later replaced in
// place by the authoritative message (socket echo matched by correlation id,
// or the REST response) or rolled back with the draft restored verbatim.
func (uc *ThreadUseCase) Send(ctx context.Context, chatID, content string, attachments []string) error {
	if chatID == "" {
		return errors.BadRequest("no conversation is open", nil)
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return errors.BadRequest("message is empty", nil)
	}

	uc.mu.Lock()
	if uc.inflight[chatID] {
		uc.mu.Unlock()
		return errors.Conflict("a send is already in flight for this conversation")
	}
	uc.inflight[chatID] = true
	uc.drafts[chatID] = ""
	uc.mu.Unlock()

	defer func() {
		uc.mu.Lock()
		delete(uc.inflight, chatID)
		uc.mu.Unlock()
	}()

	uc.typing.StopNow(chatID)

	correlationID := uuid.NewString()
	tempID := entity.TempID(correlationID)
	uc.store.AppendTemp(entity.Message{
		ID:            tempID,
		ChatID:        chatID,
		SenderID:      uc.store.ViewerID(),
		SenderType:    entity.SenderTypeUser,
		Content:       content,
		CorrelationID: correlationID,
		Attachments:   attachments,
		CreatedAt:     time.Now(),
	})

	if uc.transport.IsConnected() {
		err := uc.transport.SendMessage(chatID, content, "text", attachments, correlationID)
		if err == nil {
			uc.expireTempLater(chatID, tempID)
			return nil
		}
		logger.Warn("Thread: socket send failed for chat %s, falling back to REST: %v", chatID, err)
	}

	message, err := uc.api.SendMessage(ctx, chatID, content, attachments, correlationID)
	if err != nil {
		uc.store.RemoveTemp(chatID, tempID)
		uc.mu.Lock()
		uc.drafts[chatID] = content
		uc.mu.Unlock()
		return err
	}

	uc.store.ResolveTemp(chatID, tempID, *message)
	return nil
}

// expireTempLater removes a placeholder whose echo never arrived, so a lost
// frame cannot leave a phantom message pinned to the thread.
func (uc *ThreadUseCase) expireTempLater(chatID, tempID string) {
	time.AfterFunc(uc.sendExpiry, func() {
		if uc.store.RemoveTemp(chatID, tempID) {
			logger.Warn("Thread: optimistic message in chat %s expired without a server echo", chatID)
		}
	})
}
