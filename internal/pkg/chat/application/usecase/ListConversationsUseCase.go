package usecase

import (
	"context"

	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
)

// ListConversationsInput selects a participant's inbox page.
type ListConversationsInput struct {
	ParticipantID   string
	IncludeArchived bool
	Limit           int
	Offset          int
}

// ListConversationsUseCase returns conversations ordered by last activity, newest first.
type ListConversationsUseCase struct {
	Repo  repository.ChatRepository
	Retry StoreRetry
}

func NewListConversationsUseCase(repo repository.ChatRepository, retry StoreRetry) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo, Retry: retry}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]chat.Conversation, error) {
	participant, err := chat.NormalizeParticipantID(in.ParticipantID)
	if err != nil {
		return nil, err
	}
	return withRetry(ctx, uc.Retry, "list_conversations", func(ctx context.Context) ([]chat.Conversation, error) {
		return uc.Repo.ListConversations(ctx, participant, in.IncludeArchived, in.Limit, in.Offset)
	})
}
