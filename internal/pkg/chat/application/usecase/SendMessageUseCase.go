package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"changanet/internal/infrastructure/metrics"
	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries the data needed to send a new message.
// Body is raw user input; sanitizing happens in the domain.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Body           string
	// OriginSession, when set, is skipped by the sender echo.
	OriginSession string
}

// SendMessageOptions tune message validation.
type SendMessageOptions struct {
	MaxLength int
}

// SessionNotifier is implemented by notifiers that can skip the originating session.
type SessionNotifier interface {
	NotifyUserExcept(userID, sessionID string, payload []byte) int
}

// SendMessageUseCase validates, rate limits, persists and relays a message.
type SendMessageUseCase struct {
	Repo      repository.ChatRepository
	Limiter   RateLimiter
	Notifier  Notifier
	Scheduler DeliveryScheduler
	Retry     StoreRetry
	Options   SendMessageOptions
	Log       zerolog.Logger
	Now       func() time.Time
}

func NewSendMessageUseCase(
	repo repository.ChatRepository,
	limiter RateLimiter,
	notifier Notifier,
	scheduler DeliveryScheduler,
	retry StoreRetry,
	opts SendMessageOptions,
	log zerolog.Logger,
) *SendMessageUseCase {
	if limiter == nil {
		limiter = allowAll{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &SendMessageUseCase{
		Repo:      repo,
		Limiter:   limiter,
		Notifier:  notifier,
		Scheduler: scheduler,
		Retry:     retry,
		Options:   opts,
		Log:       log,
		Now:       time.Now,
	}
}

// Execute persists the message and returns it with its server id and timestamp.
// Realtime delivery is best effort and never fails the call.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (msg *chat.Message, err error) {
	started := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = string(chat.KindOf(err))
		}
		metrics.RecordSend(result, started)
	}()

	id, err := chat.ParseConversationID(in.ConversationID)
	if err != nil {
		return nil, err
	}
	sender, err := chat.NormalizeParticipantID(in.SenderID)
	if err != nil || !id.Has(sender) {
		return nil, chat.ErrNotParticipant
	}

	conv, err := withRetry(ctx, uc.Retry, "get_conversation", func(ctx context.Context) (chat.Conversation, error) {
		return uc.Repo.GetConversation(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	agg := chat.Chat{Conversation: conv, MaxLength: uc.Options.MaxLength}
	draft, err := agg.PostMessage(chat.Message{
		ConversationID: id,
		SenderID:       sender,
		Body:           in.Body,
	}, uc.Now())
	if err != nil {
		return nil, err
	}

	allowed, err := uc.Limiter.Allow(ctx, sender)
	if err != nil {
		// the limiter backend is down; sending stays available
		uc.Log.Warn().Err(err).Str("sender_id", sender).Msg("rate limiter unavailable")
	} else if !allowed {
		return nil, chat.ErrRateLimited
	}

	stored, err := withRetry(ctx, uc.Retry, "save_message", func(ctx context.Context) (chat.Message, error) {
		return uc.Repo.SaveMessage(ctx, draft)
	})
	if err != nil {
		uc.Log.Error().Err(err).Str("conversation_id", id.String()).Msg("save message failed")
		return nil, err
	}

	uc.relay(ctx, agg, stored, in.OriginSession)
	return &stored, nil
}

func (uc *SendMessageUseCase) relay(ctx context.Context, agg chat.Chat, m chat.Message, originSession string) {
	recipient, err := agg.Recipient(m.SenderID)
	if err != nil {
		return
	}
	ev := chat.Event{Type: chat.EventMessageReceived, ConversationID: m.ConversationID, Data: m}
	payload, err := ev.Encode()
	if err != nil {
		uc.Log.Error().Err(err).Msg("encode message event")
		return
	}

	delivered := uc.Notifier.NotifyUser(recipient, payload)
	metrics.RecordNotified(string(ev.Type), delivered)

	// the sender's other devices see their own message too
	if sn, ok := uc.Notifier.(SessionNotifier); ok && originSession != "" {
		sn.NotifyUserExcept(m.SenderID, originSession, payload)
	} else {
		uc.Notifier.NotifyUser(m.SenderID, payload)
	}

	if delivered == 0 || uc.Scheduler == nil {
		return
	}
	if err := uc.Scheduler.ScheduleDelivered(context.WithoutCancel(ctx), m.ID); err != nil {
		uc.Log.Warn().Err(err).Str("message_id", m.ID).Msg("schedule delivered failed")
	}
}
