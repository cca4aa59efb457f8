package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"changanet/internal/infrastructure/metrics"
	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
	userrepo "changanet/internal/repository/port"
)

// OpenConversationInput names the two marketplace users of the conversation.
// Order does not matter.
type OpenConversationInput struct {
	ParticipantA string
	ParticipantB string
}

// OpenConversationResult reports whether this call created the conversation.
type OpenConversationResult struct {
	Conversation chat.Conversation
	Created      bool
}

// OpenConversationUseCase returns the single conversation of a pair, creating it on first use.
type OpenConversationUseCase struct {
	Repo  repository.ChatRepository
	Users userrepo.UserDirectory
	Retry StoreRetry
	Log   zerolog.Logger
	Now   func() time.Time
}

func NewOpenConversationUseCase(repo repository.ChatRepository, users userrepo.UserDirectory, retry StoreRetry, log zerolog.Logger) *OpenConversationUseCase {
	return &OpenConversationUseCase{Repo: repo, Users: users, Retry: retry, Log: log, Now: time.Now}
}

// Execute is idempotent: concurrent calls for the same pair yield one conversation.
func (uc *OpenConversationUseCase) Execute(ctx context.Context, in OpenConversationInput) (*OpenConversationResult, error) {
	a, err := uuid.Parse(in.ParticipantA)
	if err != nil {
		return nil, chat.Errorf(chat.KindInvalidParticipants, "participant_a is not a valid id")
	}
	b, err := uuid.Parse(in.ParticipantB)
	if err != nil {
		return nil, chat.Errorf(chat.KindInvalidParticipants, "participant_b is not a valid id")
	}
	id, err := chat.EncodeConversationID(a, b)
	if err != nil {
		return nil, err
	}

	for _, u := range []uuid.UUID{a, b} {
		userID := u.String()
		exists, err := withRetry(ctx, uc.Retry, "user_exists", func(ctx context.Context) (bool, error) {
			return uc.Users.Exists(ctx, userID)
		})
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, chat.Errorf(chat.KindInvalidParticipants, "user %s does not exist", userID)
		}
	}

	conv := chat.NewConversation(id, uc.Now())
	res, err := withRetry(ctx, uc.Retry, "create_conversation", func(ctx context.Context) (OpenConversationResult, error) {
		stored, created, err := uc.Repo.CreateConversationIfAbsent(ctx, conv)
		return OpenConversationResult{Conversation: stored, Created: created}, err
	})
	if err != nil {
		uc.Log.Error().Err(err).Str("conversation_id", id.String()).Msg("open conversation failed")
		return nil, err
	}

	if res.Created {
		metrics.ConversationsOpened.WithLabelValues("created").Inc()
		uc.Log.Info().Str("conversation_id", id.String()).Msg("conversation created")
	} else {
		metrics.ConversationsOpened.WithLabelValues("existing").Inc()
	}
	return &res, nil
}
