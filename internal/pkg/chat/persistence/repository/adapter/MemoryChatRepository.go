package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"

	"github.com/google/uuid"
)

// MemoryChatRepository is a thread-safe repository for tests and local runs
// without PostgreSQL. It honors the same atomicity rules as PgChatRepository.
type MemoryChatRepository struct {
	mu            sync.RWMutex
	conversations map[chat.ConversationID]*chat.Conversation
	messages      map[chat.ConversationID][]chat.Message
	byID          map[string]messageRef
}

type messageRef struct {
	conversationID chat.ConversationID
	index          int
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		conversations: make(map[chat.ConversationID]*chat.Conversation),
		messages:      make(map[chat.ConversationID][]chat.Message),
		byID:          make(map[string]messageRef),
	}
}

var _ repository.ChatRepository = (*MemoryChatRepository)(nil)

func (r *MemoryChatRepository) CreateConversationIfAbsent(_ context.Context, c chat.Conversation) (chat.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conversations[c.ID]; ok {
		return cloneConversation(existing), false, nil
	}
	stored := cloneConversation(&c)
	r.conversations[c.ID] = &stored
	return cloneConversation(&stored), true, nil
}

func (r *MemoryChatRepository) GetConversation(_ context.Context, id chat.ConversationID) (chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return chat.Conversation{}, repository.ErrConversationNotFound
	}
	return cloneConversation(c), nil
}

func (r *MemoryChatRepository) ListConversations(_ context.Context, userID string, includeArchived bool, limit int, offset int) ([]chat.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var out []chat.Conversation
	for _, c := range r.conversations {
		p, ok := c.Participant(userID)
		if !ok || (!includeArchived && p.ArchivedAt != nil) {
			continue
		}
		out = append(out, cloneConversation(c))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID < out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryChatRepository) SetArchived(_ context.Context, id chat.ConversationID, userID string, archived bool) (chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return chat.Conversation{}, repository.ErrConversationNotFound
	}
	for i := range c.Participants {
		p := &c.Participants[i]
		if p.UserID != userID {
			continue
		}
		switch {
		case archived && p.ArchivedAt == nil:
			now := time.Now().UTC()
			p.ArchivedAt = &now
		case !archived:
			p.ArchivedAt = nil
		}
		return cloneConversation(c), nil
	}
	return chat.Conversation{}, repository.ErrConversationNotFound
}

func (r *MemoryChatRepository) SaveMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[m.ConversationID]
	if !ok {
		return chat.Message{}, repository.ErrConversationNotFound
	}
	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.CreatedAt.After(c.LastActivityAt) {
		c.LastActivityAt = m.CreatedAt
	}
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], m)
	r.byID[m.ID] = messageRef{conversationID: m.ConversationID, index: len(r.messages[m.ConversationID]) - 1}
	return m, nil
}

func (r *MemoryChatRepository) GetMessagesByConversation(_ context.Context, id chat.ConversationID, limit int, offset int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[id]
	var out []chat.Message
	// newest first
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *MemoryChatRepository) MarkDelivered(_ context.Context, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.byID[messageID]
	if !ok {
		return false, repository.ErrMessageNotFound
	}
	msg := &r.messages[ref.conversationID][ref.index]
	if msg.Status != chat.MessageStatusSent {
		return false, nil
	}
	msg.Status = chat.MessageStatusDelivered
	return true, nil
}

func (r *MemoryChatRepository) MarkRead(_ context.Context, id chat.ConversationID, readerID string, upTo *string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return 0, repository.ErrConversationNotFound
	}
	reader := -1
	for i := range c.Participants {
		if c.Participants[i].UserID == readerID {
			reader = i
		}
	}
	if reader < 0 {
		return 0, repository.ErrConversationNotFound
	}
	msgs := r.messages[id]
	last := len(msgs) - 1
	if upTo != nil {
		ref, ok := r.byID[*upTo]
		if !ok || ref.conversationID != id {
			return 0, repository.ErrMessageNotFound
		}
		last = ref.index
	}
	if last < 0 {
		return 0, nil
	}

	var updated int64
	for i := 0; i <= last; i++ {
		if msgs[i].SenderID != readerID && msgs[i].Status < chat.MessageStatusRead {
			msgs[i].Status = chat.MessageStatusRead
			updated++
		}
	}

	lastID := msgs[last].ID
	c.Participants[reader].LastReadMsg = &lastID
	return updated, nil
}

func cloneConversation(c *chat.Conversation) chat.Conversation {
	out := *c
	out.Participants = make([]chat.Participant, len(c.Participants))
	for i, p := range c.Participants {
		if p.ArchivedAt != nil {
			t := *p.ArchivedAt
			p.ArchivedAt = &t
		}
		if p.LastReadMsg != nil {
			s := *p.LastReadMsg
			p.LastReadMsg = &s
		}
		out.Participants[i] = p
	}
	return out
}
