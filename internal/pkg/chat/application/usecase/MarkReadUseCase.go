package usecase

import (
	"context"

	"github.com/google/uuid"

	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
)

// MarkReadInput marks messages received by ReaderID as read, up to UpToMessageID
// or all of them when it is nil.
type MarkReadInput struct {
	ConversationID string
	ReaderID       string
	UpToMessageID  *string
}

type MarkReadUseCase struct {
	Repo     repository.ChatRepository
	Notifier Notifier
	Retry    StoreRetry
}

func NewMarkReadUseCase(repo repository.ChatRepository, notifier Notifier, retry StoreRetry) *MarkReadUseCase {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &MarkReadUseCase{Repo: repo, Notifier: notifier, Retry: retry}
}

// Execute returns how many messages moved to read.
func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) (int64, error) {
	id, err := chat.ParseConversationID(in.ConversationID)
	if err != nil {
		return 0, err
	}
	reader, err := chat.NormalizeParticipantID(in.ReaderID)
	if err != nil {
		return 0, chat.ErrNotParticipant
	}
	other, ok := id.Other(reader)
	if !ok {
		return 0, chat.ErrNotParticipant
	}
	var upTo *string
	if in.UpToMessageID != nil {
		u, err := uuid.Parse(*in.UpToMessageID)
		if err != nil {
			return 0, chat.Errorf(chat.KindNotFound, "message not found")
		}
		s := u.String()
		upTo = &s
	}

	updated, err := withRetry(ctx, uc.Retry, "mark_read", func(ctx context.Context) (int64, error) {
		return uc.Repo.MarkRead(ctx, id, reader, upTo)
	})
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		notify(uc.Notifier, other, chat.Event{
			Type:           chat.EventMessagesRead,
			ConversationID: id,
			Data:           chat.ReadData{ReaderID: reader, UpToMessageID: upTo, Updated: updated},
		})
	}
	return updated, nil
}
