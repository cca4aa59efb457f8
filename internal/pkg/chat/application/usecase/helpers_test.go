package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	chat "changanet/internal/pkg/chat/application/domain"
	"changanet/internal/pkg/chat/persistence/repository/adapter"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
	useradapter "changanet/internal/repository/adapter"
)

var fastRetry = StoreRetry{Attempts: 3, Delay: time.Millisecond}

type delivered struct {
	UserID string
	Event  chat.EventType
	Raw    json.RawMessage
}

// recordingNotifier stands in for realtime.Router. Users in online accept frames.
type recordingNotifier struct {
	mu     sync.Mutex
	online map[string]int
	got    []delivered
}

func newRecordingNotifier(online ...string) *recordingNotifier {
	n := &recordingNotifier{online: map[string]int{}}
	for _, u := range online {
		n.online[u]++
	}
	return n
}

func (n *recordingNotifier) NotifyUser(userID string, payload []byte) int {
	var env struct {
		Type chat.EventType  `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(payload, &env)
	n.mu.Lock()
	defer n.mu.Unlock()
	count := n.online[userID]
	if count > 0 {
		n.got = append(n.got, delivered{UserID: userID, Event: env.Type, Raw: env.Data})
	}
	return count
}

func (n *recordingNotifier) eventsFor(userID string, ev chat.EventType) []json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []json.RawMessage
	for _, d := range n.got {
		if d.UserID == userID && d.Event == ev {
			out = append(out, d.Raw)
		}
	}
	return out
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (s *recordingScheduler) ScheduleDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
	return nil
}

type staticLimiter struct {
	allow bool
	err   error
}

func (l staticLimiter) Allow(context.Context, string) (bool, error) { return l.allow, l.err }

// flakyRepo fails the first failures calls of SaveMessage and GetConversation
// with a transient error.
type flakyRepo struct {
	repository.ChatRepository
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (r *flakyRepo) fail() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures > 0 {
		r.failures--
		if r.err != nil {
			return r.err
		}
		return fmt.Errorf("%w: connection reset", repository.ErrUnavailable)
	}
	return nil
}

func (r *flakyRepo) GetConversation(ctx context.Context, id chat.ConversationID) (chat.Conversation, error) {
	if err := r.fail(); err != nil {
		return chat.Conversation{}, err
	}
	return r.ChatRepository.GetConversation(ctx, id)
}

func (r *flakyRepo) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if err := r.fail(); err != nil {
		return chat.Message{}, err
	}
	return r.ChatRepository.SaveMessage(ctx, m)
}

type fixture struct {
	repo  *adapter.MemoryChatRepository
	users *useradapter.MemoryUserRepository
	u1    string
	u2    string
	conv  chat.Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	u1, u2 := uuid.NewString(), uuid.NewString()
	f := &fixture{
		repo:  adapter.NewMemoryChatRepository(),
		users: useradapter.NewMemoryUserRepository(u1, u2),
		u1:    u1,
		u2:    u2,
	}
	res, err := NewOpenConversationUseCase(f.repo, f.users, fastRetry, zerolog.Nop()).
		Execute(context.Background(), OpenConversationInput{ParticipantA: u1, ParticipantB: u2})
	require.NoError(t, err)
	f.conv = res.Conversation
	return f
}

func (f *fixture) send(t *testing.T, uc *SendMessageUseCase, sender, body string) *chat.Message {
	t.Helper()
	m, err := uc.Execute(context.Background(), SendMessageInput{
		ConversationID: f.conv.ID.String(),
		SenderID:       sender,
		Body:           body,
	})
	require.NoError(t, err)
	return m
}
