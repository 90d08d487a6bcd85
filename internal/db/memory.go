package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"propchat/internal/models"
)

// MemoryStore keeps users, chats and messages in process memory.
// It backs development runs without DATABASE_URL and the handler tests.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[int64]models.User
	chats    map[int64]models.Chat
	messages map[int64][]models.ChatMessage // key: chat id

	nextUserID    int64
	nextChatID    int64
	nextMessageID int64

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]models.User),
		chats:    make(map[int64]models.Chat),
		messages: make(map[int64][]models.ChatMessage),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *MemoryStore) CreateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		s.nextUserID++
		u.ID = s.nextUserID
	} else if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	if _, exists := s.users[u.ID]; exists {
		return models.User{}, fmt.Errorf("db: user %d already exists", u.ID)
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetChat(_ context.Context, id int64) (models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return models.Chat{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) GetOrCreateChat(_ context.Context, propertyID, buyerID, sellerID int64) (models.Chat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chats {
		if c.PropertyID == propertyID && c.BuyerID == buyerID && c.SellerID == sellerID {
			return c, false, nil
		}
	}

	now := s.now()
	s.nextChatID++
	c := models.Chat{
		ID:            s.nextChatID,
		PropertyID:    propertyID,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	s.chats[c.ID] = c
	return c, true, nil
}

func (s *MemoryStore) ListChatsForUser(_ context.Context, userID int64) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chats []models.Chat
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			chats = append(chats, c)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		if chats[i].LastMessageAt.Equal(chats[j].LastMessageAt) {
			return chats[i].ID > chats[j].ID
		}
		return chats[i].LastMessageAt.After(chats[j].LastMessageAt)
	})
	return chats, nil
}

func (s *MemoryStore) AddChatMessage(_ context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[msg.ChatID]
	if !ok {
		return models.ChatMessage{}, ErrNotFound
	}

	// created_at strictly increases within a chat, even if the clock stalls or goes back.
	createdAt := s.now()
	if existing := s.messages[msg.ChatID]; len(existing) > 0 {
		if last := existing[len(existing)-1].CreatedAt; !createdAt.After(last) {
			createdAt = last.Add(CreatedAtStep)
		}
	}

	s.nextMessageID++
	msg.ID = s.nextMessageID
	msg.CreatedAt = createdAt
	msg.IsRead = false
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)

	c.LastMessageAt = createdAt
	s.chats[c.ID] = c
	return msg, nil
}

func (s *MemoryStore) GetChatMessages(_ context.Context, chatID int64) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) GetChatMessagesSince(_ context.Context, chatID int64, since time.Time) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ChatMessage
	for _, m := range s.messages[chatID] {
		if m.CreatedAt.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkMessagesRead(_ context.Context, chatID, readerID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
