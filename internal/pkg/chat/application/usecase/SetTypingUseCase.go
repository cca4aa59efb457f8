package usecase

import (
	"context"
	"time"

	"changanet/internal/infrastructure/realtime"
	chat "changanet/internal/pkg/chat/application/domain"
)

// SetTypingInput toggles the typing indicator of SenderID in a conversation.
type SetTypingInput struct {
	ConversationID string
	SenderID       string
	IsTyping       bool
}

// SetTypingUseCase relays typing indicators to the other participant.
// Nothing is persisted and the store is never read: membership follows from
// the conversation identifier. A true signal that is not refreshed within the
// TTL is turned off by the tracker.
type SetTypingUseCase struct {
	Notifier Notifier
	tracker  *realtime.TypingTracker
}

func NewSetTypingUseCase(notifier Notifier, ttl time.Duration) *SetTypingUseCase {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	uc := &SetTypingUseCase{Notifier: notifier}
	uc.tracker = realtime.NewTypingTracker(ttl, uc.expired)
	return uc
}

func (uc *SetTypingUseCase) Execute(_ context.Context, in SetTypingInput) error {
	id, err := chat.ParseConversationID(in.ConversationID)
	if err != nil {
		return err
	}
	sender, err := chat.NormalizeParticipantID(in.SenderID)
	if err != nil {
		return chat.ErrNotParticipant
	}
	recipient, ok := id.Other(sender)
	if !ok {
		return chat.ErrNotParticipant
	}

	if in.IsTyping {
		uc.tracker.Touch(id.String(), sender)
	} else {
		uc.tracker.Stop(id.String(), sender)
	}
	uc.publish(id, sender, recipient, in.IsTyping)
	return nil
}

// Close stops pending expirations.
func (uc *SetTypingUseCase) Close() {
	uc.tracker.Close()
}

func (uc *SetTypingUseCase) expired(conversationID, senderID string) {
	id := chat.ConversationID(conversationID)
	recipient, ok := id.Other(senderID)
	if !ok {
		return
	}
	uc.publish(id, senderID, recipient, false)
}

func (uc *SetTypingUseCase) publish(id chat.ConversationID, sender, recipient string, typing bool) {
	notify(uc.Notifier, recipient, chat.Event{
		Type:           chat.EventTypingChanged,
		ConversationID: id,
		Data:           chat.TypingData{SenderID: sender, IsTyping: typing},
	})
}
