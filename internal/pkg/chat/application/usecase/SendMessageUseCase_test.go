package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "changanet/internal/pkg/chat/application/domain"
)

func newSendUC(f *fixture, n Notifier, s DeliveryScheduler, l RateLimiter) *SendMessageUseCase {
	return NewSendMessageUseCase(f.repo, l, n, s, fastRetry, SendMessageOptions{MaxLength: 50}, zerolog.Nop())
}

func TestSendMessage_PersistsAndNotifies(t *testing.T) {
	f := newFixture(t)
	n := newRecordingNotifier(f.u2)
	sched := &recordingScheduler{}
	uc := newSendUC(f, n, sched, nil)

	m := f.send(t, uc, f.u1, "  <b>hola</b> ")
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "hola", m.Body)
	assert.Equal(t, chat.MessageStatusSent, m.Status)
	assert.Equal(t, f.u1, m.SenderID)

	got := n.eventsFor(f.u2, chat.EventMessageReceived)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0]), `"body":"hola"`)
	assert.Equal(t, []string{m.ID}, sched.ids)

	conv, err := f.repo.GetConversation(context.Background(), f.conv.ID)
	require.NoError(t, err)
	assert.False(t, conv.LastActivityAt.Before(m.CreatedAt))
}

func TestSendMessage_OfflineRecipientIsNotAnError(t *testing.T) {
	f := newFixture(t)
	sched := &recordingScheduler{}
	uc := newSendUC(f, newRecordingNotifier(), sched, nil)

	m := f.send(t, uc, f.u1, "hola")
	assert.NotEmpty(t, m.ID)
	assert.Empty(t, sched.ids, "nothing to mark delivered without a live recipient")
}

func TestSendMessage_EchoesToSenderSessions(t *testing.T) {
	f := newFixture(t)
	n := newRecordingNotifier(f.u1)
	uc := newSendUC(f, n, nil, nil)

	f.send(t, uc, f.u1, "hola")
	assert.Len(t, n.eventsFor(f.u1, chat.EventMessageReceived), 1)
}

func TestSendMessage_Rejections(t *testing.T) {
	f := newFixture(t)
	uc := newSendUC(f, nil, nil, nil)
	strangerA := uuid.New()
	otherID, err := chat.EncodeConversationID(strangerA, uuid.New())
	require.NoError(t, err)
	invalidMessage := &chat.Error{Kind: chat.KindInvalidMessage}

	cases := []struct {
		name string
		in   SendMessageInput
		want error
	}{
		{"malformed id", SendMessageInput{ConversationID: f.u1, SenderID: f.u1, Body: "x"}, chat.ErrMalformedIdentifier},
		{"legacy hyphen form", SendMessageInput{ConversationID: f.u1 + "-" + f.u2, SenderID: f.u1, Body: "x"}, chat.ErrMalformedIdentifier},
		{"outsider", SendMessageInput{ConversationID: f.conv.ID.String(), SenderID: uuid.NewString(), Body: "x"}, chat.ErrNotParticipant},
		{"sender not a uuid", SendMessageInput{ConversationID: f.conv.ID.String(), SenderID: "bob", Body: "x"}, chat.ErrNotParticipant},
		{"unknown conversation", SendMessageInput{ConversationID: otherID.String(), SenderID: strangerA.String(), Body: "x"}, chat.ErrNotFound},
		{"empty body", SendMessageInput{ConversationID: f.conv.ID.String(), SenderID: f.u1, Body: "   "}, invalidMessage},
		{"only markup", SendMessageInput{ConversationID: f.conv.ID.String(), SenderID: f.u1, Body: "<script>alert(1)</script>"}, invalidMessage},
		{"too long", SendMessageInput{ConversationID: f.conv.ID.String(), SenderID: f.u1, Body: strings.Repeat("a", 51)}, invalidMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	msgs, err := f.repo.GetMessagesByConversation(context.Background(), f.conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "rejected sends persist nothing")
}

func TestSendMessage_RateLimited(t *testing.T) {
	f := newFixture(t)
	uc := newSendUC(f, nil, nil, staticLimiter{allow: false})

	_, err := uc.Execute(context.Background(), SendMessageInput{ConversationID: f.conv.ID.String(), SenderID: f.u1, Body: "hola"})
	assert.ErrorIs(t, err, chat.ErrRateLimited)

	msgs, err := f.repo.GetMessagesByConversation(context.Background(), f.conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendMessage_LimiterOutageFailsOpen(t *testing.T) {
	f := newFixture(t)
	uc := newSendUC(f, nil, nil, staticLimiter{err: errors.New("redis down")})
	f.send(t, uc, f.u1, "hola")
}

func TestSendMessage_RetriesTransientStoreErrors(t *testing.T) {
	f := newFixture(t)
	repo := &flakyRepo{ChatRepository: f.repo, failures: 2}
	uc := NewSendMessageUseCase(repo, nil, nil, nil, fastRetry, SendMessageOptions{}, zerolog.Nop())

	m := f.send(t, uc, f.u2, "hola")
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 4, repo.calls, "two failures, then get and save")
}

func TestSendMessage_StoreUnavailableAfterRetries(t *testing.T) {
	f := newFixture(t)
	repo := &flakyRepo{ChatRepository: f.repo, failures: 100}
	uc := NewSendMessageUseCase(repo, nil, nil, nil, fastRetry, SendMessageOptions{}, zerolog.Nop())

	_, err := uc.Execute(context.Background(), SendMessageInput{ConversationID: f.conv.ID.String(), SenderID: f.u1, Body: "hola"})
	assert.ErrorIs(t, err, chat.ErrStoreUnavailable)
	assert.Equal(t, int(fastRetry.Attempts)+1, repo.calls)
}

func TestSendMessage_PermanentStoreErrorIsNotRetried(t *testing.T) {
	f := newFixture(t)
	repo := &flakyRepo{ChatRepository: f.repo, failures: 1, err: errors.New("constraint violated")}
	uc := NewSendMessageUseCase(repo, nil, nil, nil, fastRetry, SendMessageOptions{}, zerolog.Nop())

	_, err := uc.Execute(context.Background(), SendMessageInput{ConversationID: f.conv.ID.String(), SenderID: f.u1, Body: "hola"})
	assert.ErrorIs(t, err, chat.ErrStoreUnavailable)
	assert.Equal(t, 1, repo.calls)
}

func TestSendMessage_OrderFollowsSendOrder(t *testing.T) {
	f := newFixture(t)
	uc := newSendUC(f, nil, nil, nil)
	now := time.Now()
	uc.Now = func() time.Time { return now }

	for _, body := range []string{"uno", "dos", "tres"} {
		f.send(t, uc, f.u1, body)
	}
	msgs, err := f.repo.GetMessagesByConversation(context.Background(), f.conv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"tres", "dos", "uno"}, []string{msgs[0].Body, msgs[1].Body, msgs[2].Body})
}

// Open, send, typing, archive, send again: the archive flag survives the send.
func TestScenario_ArchivedConversationKeepsReceiving(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := newRecordingNotifier(f.u1, f.u2)
	send := newSendUC(f, n, nil, nil)
	typing := NewSetTypingUseCase(n, time.Minute)
	defer typing.Close()
	archive := NewArchiveConversationUseCase(f.repo, n, fastRetry, zerolog.Nop())

	again, err := NewOpenConversationUseCase(f.repo, f.users, fastRetry, zerolog.Nop()).
		Execute(ctx, OpenConversationInput{ParticipantA: f.u2, ParticipantB: f.u1})
	require.NoError(t, err)
	assert.Equal(t, f.conv.ID, again.Conversation.ID)
	assert.False(t, again.Created)

	hola := f.send(t, send, f.u1, "hola")
	assert.Equal(t, chat.MessageStatusSent, hola.Status)

	require.NoError(t, typing.Execute(ctx, SetTypingInput{ConversationID: f.conv.ID.String(), SenderID: f.u2, IsTyping: true}))
	got := n.eventsFor(f.u1, chat.EventTypingChanged)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"sender_id":"`+f.u2+`","is_typing":true}`, string(got[0]))

	conv, err := archive.Execute(ctx, ArchiveConversationInput{ConversationID: f.conv.ID.String(), ParticipantID: f.u1, Archived: true})
	require.NoError(t, err)
	assert.True(t, conv.ArchivedFor(f.u1))
	assert.False(t, conv.ArchivedFor(f.u2))

	otra := f.send(t, send, f.u1, "otra")
	assert.Equal(t, f.u1, otra.SenderID, "the archiver can keep sending")
	f.send(t, send, f.u2, "respuesta")

	msgs, err := f.repo.GetMessagesByConversation(ctx, f.conv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "otra", msgs[1].Body)

	stored, err := f.repo.GetConversation(ctx, f.conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.ArchivedFor(f.u1))
	assert.False(t, stored.ArchivedFor(f.u2))
}
