package usecase

import (
	"sort"
	"sync"
	"time"

	ws "townsq/internal/infrastructure/websocket"
	"townsq/pkg/logger"
)

// TypingUseCase tracks composing presence in both directions: the viewer's
// outgoing signal with debounced decay, and the set of remote users typing
// in the open conversation.
type TypingUseCase struct {
	store     *Store
	transport Transport
	debounce  time.Duration
	ttl       time.Duration // remote entry expiry; 0 trusts stop events alone

	mu        sync.Mutex
	composing map[string]*time.Timer
	remote    map[string]*time.Timer
}

func NewTypingUseCase(store *Store, transport Transport, debounce, ttl time.Duration) *TypingUseCase {
	if debounce <= 0 {
		debounce = 3 * time.Second
	}
	return &TypingUseCase{
		store:     store,
		transport: transport,
		debounce:  debounce,
		ttl:       ttl,
		composing: make(map[string]*time.Timer),
		remote:    make(map[string]*time.Timer),
	}
}

// Keystroke is called per local keystroke. The start signal fires once on
// the first keystroke after idle; the stop signal fires only after a full
// debounce window with no further keystrokes.
func (uc *TypingUseCase) Keystroke(chatID string) {
	uc.mu.Lock()
	if timer, ok := uc.composing[chatID]; ok {
		timer.Reset(uc.debounce)
		uc.mu.Unlock()
		return
	}
	uc.composing[chatID] = time.AfterFunc(uc.debounce, func() {
		uc.expireComposing(chatID)
	})
	uc.mu.Unlock()

	if err := uc.transport.StartTyping(chatID); err != nil {
		logger.Debug("Typing: start signal dropped for chat %s: %v", chatID, err)
	}
}

// StopNow ends the viewer's typing state immediately, used on send.
func (uc *TypingUseCase) StopNow(chatID string) {
	uc.mu.Lock()
	timer, ok := uc.composing[chatID]
	if ok {
		timer.Stop()
		delete(uc.composing, chatID)
	}
	uc.mu.Unlock()

	if ok {
		if err := uc.transport.StopTyping(chatID); err != nil {
			logger.Debug("Typing: stop signal dropped for chat %s: %v", chatID, err)
		}
	}
}

func (uc *TypingUseCase) expireComposing(chatID string) {
	uc.mu.Lock()
	_, ok := uc.composing[chatID]
	delete(uc.composing, chatID)
	uc.mu.Unlock()

	// StopNow may have won the race; the stop signal must fire exactly once.
	if ok {
		if err := uc.transport.StopTyping(chatID); err != nil {
			logger.Debug("Typing: stop signal dropped for chat %s: %v", chatID, err)
		}
	}
}

// HandleTyping folds in a remote user-typing event. Events for conversations
// other than the open one are ignored.
func (uc *TypingUseCase) HandleTyping(data ws.TypingData) {
	if data.ChatID != uc.store.Active() || data.UserID == uc.store.ViewerID() {
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if timer, ok := uc.remote[data.UserID]; ok {
		if timer != nil {
			timer.Reset(uc.ttl)
		}
		return
	}
	if uc.ttl > 0 {
		// A crashed peer never sends its stop event; expire the entry so the
		// indicator cannot stick forever.
		userID := data.UserID
		uc.remote[userID] = time.AfterFunc(uc.ttl, func() {
			uc.expireRemote(userID)
		})
	} else {
		uc.remote[data.UserID] = nil
	}
}

func (uc *TypingUseCase) HandleStoppedTyping(data ws.TypingData) {
	if data.ChatID != uc.store.Active() {
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if timer, ok := uc.remote[data.UserID]; ok {
		if timer != nil {
			timer.Stop()
		}
		delete(uc.remote, data.UserID)
	}
}

func (uc *TypingUseCase) expireRemote(userID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.remote, userID)
}

// Typists returns the remote user ids composing in the open conversation.
func (uc *TypingUseCase) Typists() []string {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	out := make([]string, 0, len(uc.remote))
	for userID := range uc.remote {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// ClearRemote drops all remote entries, called when the viewer switches
// conversations.
func (uc *TypingUseCase) ClearRemote() {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for userID, timer := range uc.remote {
		if timer != nil {
			timer.Stop()
		}
		delete(uc.remote, userID)
	}
}
