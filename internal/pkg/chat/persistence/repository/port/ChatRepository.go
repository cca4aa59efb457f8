package repository

import (
	"context"
	"errors"

	chat "changanet/internal/pkg/chat/application/domain"
)

var (
	// ErrConversationNotFound is returned when no conversation row matches.
	ErrConversationNotFound = errors.New("repository: conversation not found")
	// ErrMessageNotFound is returned when no message row matches.
	ErrMessageNotFound = errors.New("repository: message not found")
	// ErrUnavailable marks a transient failure (timeout, lost connection);
	// the operation can be retried as is.
	ErrUnavailable = errors.New("repository: store unavailable")
)

// ChatRepository defines persistence operations for the chat domain.
// All mutations of conversations and messages go through it.
type ChatRepository interface {
	// CreateConversationIfAbsent inserts c with its two participant rows unless a
	// conversation with the same id exists. It returns the stored conversation
	// and whether this call created it. The check and the insert are atomic.
	CreateConversationIfAbsent(ctx context.Context, c chat.Conversation) (chat.Conversation, bool, error)
	GetConversation(ctx context.Context, id chat.ConversationID) (chat.Conversation, error)
	ListConversations(ctx context.Context, userID string, includeArchived bool, limit int, offset int) ([]chat.Conversation, error)
	// SetArchived flips the archive flag of one participant. last_activity_at is not touched.
	SetArchived(ctx context.Context, id chat.ConversationID, userID string, archived bool) (chat.Conversation, error)

	// SaveMessage persists m and bumps the conversation's last_activity_at in one
	// transaction, returning the stored message with its server id and timestamp.
	SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	GetMessagesByConversation(ctx context.Context, id chat.ConversationID, limit int, offset int) ([]chat.Message, error)
	// MarkDelivered moves a message from sent to delivered. It reports false when
	// the message had already advanced past sent.
	MarkDelivered(ctx context.Context, messageID string) (bool, error)
	// MarkRead moves every message sent to readerID up to upTo (all when nil)
	// to read and records upTo as the reader's last read message.
	MarkRead(ctx context.Context, id chat.ConversationID, readerID string, upTo *string) (int64, error)
}
