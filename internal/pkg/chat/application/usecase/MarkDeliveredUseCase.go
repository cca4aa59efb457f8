package usecase

import (
	"context"

	"github.com/google/uuid"

	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
)

// MarkDeliveredUseCase advances a message from sent to delivered.
// Messages already delivered or read are left as they are.
type MarkDeliveredUseCase struct {
	Repo  repository.ChatRepository
	Retry StoreRetry
}

func NewMarkDeliveredUseCase(repo repository.ChatRepository, retry StoreRetry) *MarkDeliveredUseCase {
	return &MarkDeliveredUseCase{Repo: repo, Retry: retry}
}

// Execute reports whether this call advanced the status.
func (uc *MarkDeliveredUseCase) Execute(ctx context.Context, messageID string) (bool, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return false, chat.Errorf(chat.KindNotFound, "message not found")
	}
	return withRetry(ctx, uc.Retry, "mark_delivered", func(ctx context.Context) (bool, error) {
		return uc.Repo.MarkDelivered(ctx, messageID)
	})
}
