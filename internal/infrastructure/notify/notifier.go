package notify

import (
	"sync"

	"townsq/internal/domain/entity"
	"townsq/pkg/logger"
)

type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

// LogNotifier mirrors the browser notification contract: permission is
// requested once while in the default state, and notifications are raised
// only when it was granted. The terminal client logs instead of raising an
// OS toast.
type LogNotifier struct {
	mu         sync.Mutex
	permission Permission
	requested  bool
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// RequestPermission asks once; later calls are no-ops regardless of answer.
func (n *LogNotifier) RequestPermission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.requested || n.permission != PermissionDefault {
		return n.permission
	}
	n.requested = true
	n.permission = PermissionGranted
	return n.permission
}

func (n *LogNotifier) SetPermission(p Permission) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.permission = p
}

func (n *LogNotifier) Notify(chat *entity.Chat, message entity.Message) {
	n.mu.Lock()
	granted := n.permission == PermissionGranted
	n.mu.Unlock()
	if !granted {
		return
	}

	from := message.SenderID
	if chat != nil && chat.Business.Name != "" {
		from = chat.Business.Name
	}
	logger.Info("Notification: new message from %s: %s", from, message.Content)
}
