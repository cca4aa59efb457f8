package usecase

import (
	"context"

	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
)

// GetMessageInput carries parameters to fetch messages of a conversation.
// ViewerID must be one of the participants.
type GetMessageInput struct {
	ConversationID string
	ViewerID       string
	Limit          int
	Offset         int
}

// GetMessageUseCase fetches a page of history, newest first.
type GetMessageUseCase struct {
	Repo  repository.ChatRepository
	Retry StoreRetry
}

func NewGetMessageUseCase(repo repository.ChatRepository, retry StoreRetry) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo, Retry: retry}
}

// Execute returns messages for the conversation honoring limit/offset
func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]chat.Message, error) {
	id, err := chat.ParseConversationID(in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !id.Has(in.ViewerID) {
		return nil, chat.ErrNotParticipant
	}
	if _, err := withRetry(ctx, uc.Retry, "get_conversation", func(ctx context.Context) (chat.Conversation, error) {
		return uc.Repo.GetConversation(ctx, id)
	}); err != nil {
		return nil, err
	}
	msgs, err := withRetry(ctx, uc.Retry, "get_messages", func(ctx context.Context) ([]chat.Message, error) {
		return uc.Repo.GetMessagesByConversation(ctx, id, in.Limit, in.Offset)
	})
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs, nil
}
