package usecase

import (
	"context"

	"github.com/rs/zerolog"

	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
)

// ArchiveConversationInput covers both archive (Archived true) and unarchive.
type ArchiveConversationInput struct {
	ConversationID string
	ParticipantID  string
	Archived       bool
}

// ArchiveConversationUseCase sets the acting participant's own archive flag.
// The other participant's view and lastActivityAt are untouched.
type ArchiveConversationUseCase struct {
	Repo     repository.ChatRepository
	Notifier Notifier
	Retry    StoreRetry
	Log      zerolog.Logger
}

func NewArchiveConversationUseCase(repo repository.ChatRepository, notifier Notifier, retry StoreRetry, log zerolog.Logger) *ArchiveConversationUseCase {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ArchiveConversationUseCase{Repo: repo, Notifier: notifier, Retry: retry, Log: log}
}

func (uc *ArchiveConversationUseCase) Execute(ctx context.Context, in ArchiveConversationInput) (*chat.Conversation, error) {
	id, err := chat.ParseConversationID(in.ConversationID)
	if err != nil {
		return nil, err
	}
	participant, err := chat.NormalizeParticipantID(in.ParticipantID)
	if err != nil || !id.Has(participant) {
		return nil, chat.ErrNotParticipant
	}

	conv, err := withRetry(ctx, uc.Retry, "set_archived", func(ctx context.Context) (chat.Conversation, error) {
		return uc.Repo.SetArchived(ctx, id, participant, in.Archived)
	})
	if err != nil {
		return nil, err
	}

	evType := chat.EventConversationUnarchived
	if in.Archived {
		evType = chat.EventConversationArchived
	}
	// other devices of the same participant refresh their inbox
	notify(uc.Notifier, participant, chat.Event{
		Type:           evType,
		ConversationID: id,
		Data:           chat.ArchiveData{ParticipantID: participant, Archived: in.Archived},
	})
	uc.Log.Debug().
		Str("conversation_id", id.String()).
		Str("participant_id", participant).
		Bool("archived", in.Archived).
		Msg("archive flag updated")
	return &conv, nil
}
