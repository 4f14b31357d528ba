package stub

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"townsq/internal/domain/entity"
	"townsq/pkg/errors"
)

// Dataset is the stub's in-memory state. Persistence is owned by the real
// backend; this exists so the client can be exercised end to end.
type Dataset struct {
	mu           sync.RWMutex
	users        map[string]entity.User
	businesses   map[string]entity.Business
	operators    map[string]string // business id -> operator user id
	services     map[string][]entity.Service
	chats        map[string]*chatRecord
	favorites    map[string]map[string]bool
	appointments map[string][]entity.Appointment
}

type chatRecord struct {
	ID         string
	UserID     string
	Business   entity.Business
	OperatorID string
	Messages   []entity.Message
	Unread     map[string]int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewDataset() *Dataset {
	return &Dataset{
		users:        make(map[string]entity.User),
		businesses:   make(map[string]entity.Business),
		operators:    make(map[string]string),
		services:     make(map[string][]entity.Service),
		chats:        make(map[string]*chatRecord),
		favorites:    make(map[string]map[string]bool),
		appointments: make(map[string][]entity.Appointment),
	}
}

func (d *Dataset) AddUser(user entity.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

// AddBusiness registers a business and the user acting for it in chat.
func (d *Dataset) AddBusiness(business entity.Business, operatorID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.businesses[business.ID] = business
	d.operators[business.ID] = operatorID
}

func (d *Dataset) AddService(service entity.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[service.BusinessID] = append(d.services[service.BusinessID], service)
}

func (d *Dataset) User(userID string) (entity.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[userID]
	return user, ok
}

func (d *Dataset) Businesses(search, category string) []entity.Business {
	d.mu.RLock()
	defer d.mu.RUnlock()

	needle := strings.ToLower(search)
	out := make([]entity.Business, 0, len(d.businesses))
	for _, business := range d.businesses {
		if category != "" && !strings.EqualFold(business.Category, category) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(business.Name), needle) {
			continue
		}
		out = append(out, business)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Dataset) BusinessBySlug(slug string) (entity.Business, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, business := range d.businesses {
		if business.Slug == slug {
			return business, nil
		}
	}
	return entity.Business{}, errors.NotFound("business", nil)
}

func (d *Dataset) Services(businessID string) []entity.Service {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]entity.Service(nil), d.services[businessID]...)
}

// FindOrCreateChat returns the single conversation between a user and a
// business, creating it on first contact.
func (d *Dataset) FindOrCreateChat(userID, businessID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	business, ok := d.businesses[businessID]
	if !ok {
		return "", errors.NotFound("business", nil)
	}

	for _, chat := range d.chats {
		if chat.UserID == userID && chat.Business.ID == businessID {
			return chat.ID, nil
		}
	}

	now := time.Now()
	chat := &chatRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Business:   business,
		OperatorID: d.operators[businessID],
		Unread:     make(map[string]int),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	d.chats[chat.ID] = chat
	return chat.ID, nil
}

// ChatsFor projects the conversation list for one viewer.
func (d *Dataset) ChatsFor(userID string) []entity.Chat {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]entity.Chat, 0)
	for _, chat := range d.chats {
		if chat.UserID != userID && chat.OperatorID != userID {
			continue
		}
		out = append(out, d.projectChat(chat, userID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (d *Dataset) projectChat(chat *chatRecord, viewerID string) entity.Chat {
	projected := entity.Chat{
		ID:          chat.ID,
		Business:    chat.Business,
		UnreadCount: chat.Unread[viewerID],
		CreatedAt:   chat.CreatedAt,
		UpdatedAt:   chat.UpdatedAt,
	}
	if n := len(chat.Messages); n > 0 {
		last := chat.Messages[n-1]
		projected.LastMessage = &entity.MessagePreview{
			Content:   last.Content,
			CreatedAt: last.CreatedAt,
			SenderID:  last.SenderID,
			IsRead:    last.IsRead,
		}
	}
	return projected
}

func (d *Dataset) Messages(chatID, viewerID string) ([]entity.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	chat, ok := d.chats[chatID]
	if !ok {
		return nil, errors.NotFound("chat", nil)
	}
	if chat.UserID != viewerID && chat.OperatorID != viewerID {
		return nil, errors.Forbidden("not a participant of this chat", nil)
	}
	return append([]entity.Message(nil), chat.Messages...), nil
}

// AppendMessage stores a message and returns it along with the other
// participants to fan events out to.
func (d *Dataset) AppendMessage(chatID, senderID, content string, attachments []string, correlationID string) (entity.Message, []string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	chat, ok := d.chats[chatID]
	if !ok {
		return entity.Message{}, nil, errors.NotFound("chat", nil)
	}
	if chat.UserID != senderID && chat.OperatorID != senderID {
		return entity.Message{}, nil, errors.Forbidden("not a participant of this chat", nil)
	}

	senderType := entity.SenderTypeUser
	if senderID == chat.OperatorID {
		senderType = entity.SenderTypeBusiness
	}

	now := time.Now()
	message := entity.Message{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		SenderID:      senderID,
		SenderType:    senderType,
		Content:       content,
		CorrelationID: correlationID,
		Attachments:   attachments,
		CreatedAt:     now,
	}
	if sender, ok := d.users[senderID]; ok {
		message.Sender = &sender
	}

	chat.Messages = append(chat.Messages, message)
	chat.UpdatedAt = now

	var others []string
	for _, participant := range []string{chat.UserID, chat.OperatorID} {
		if participant != "" && participant != senderID {
			chat.Unread[participant]++
			others = append(others, participant)
		}
	}
	return message, others, nil
}

// MarkRead zeroes the reader's unread counter and flips messages authored by
// the other side.
func (d *Dataset) MarkRead(chatID, readerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	chat, ok := d.chats[chatID]
	if !ok {
		return errors.NotFound("chat", nil)
	}
	if chat.UserID != readerID && chat.OperatorID != readerID {
		return errors.Forbidden("not a participant of this chat", nil)
	}

	now := time.Now()
	for i := range chat.Messages {
		if chat.Messages[i].SenderID != readerID && !chat.Messages[i].IsRead {
			chat.Messages[i].IsRead = true
			readAt := now
			chat.Messages[i].ReadAt = &readAt
		}
	}
	chat.Unread[readerID] = 0
	return nil
}

func (d *Dataset) Participants(chatID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	chat, ok := d.chats[chatID]
	if !ok {
		return nil
	}
	var out []string
	for _, participant := range []string{chat.UserID, chat.OperatorID} {
		if participant != "" {
			out = append(out, participant)
		}
	}
	return out
}

func (d *Dataset) IsParticipant(chatID, userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	chat, ok := d.chats[chatID]
	return ok && (chat.UserID == userID || chat.OperatorID == userID)
}

func (d *Dataset) Favorites(userID string) []entity.Business {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]entity.Business, 0)
	for businessID := range d.favorites[userID] {
		if business, ok := d.businesses[businessID]; ok {
			out = append(out, business)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Dataset) AddFavorite(userID, businessID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.businesses[businessID]; !ok {
		return errors.NotFound("business", nil)
	}
	if d.favorites[userID] == nil {
		d.favorites[userID] = make(map[string]bool)
	}
	d.favorites[userID][businessID] = true
	return nil
}

func (d *Dataset) RemoveFavorite(userID, businessID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.favorites[userID], businessID)
}

func (d *Dataset) BookAppointment(userID, businessID, serviceID string, startsAt time.Time) (entity.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.businesses[businessID]; !ok {
		return entity.Appointment{}, errors.NotFound("business", nil)
	}

	appointment := entity.Appointment{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		ServiceID:  serviceID,
		UserID:     userID,
		StartsAt:   startsAt,
		Status:     "pending",
		CreatedAt:  time.Now(),
	}
	d.appointments[userID] = append(d.appointments[userID], appointment)
	return appointment, nil
}

func (d *Dataset) Appointments(userID string) []entity.Appointment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]entity.Appointment(nil), d.appointments[userID]...)
}
