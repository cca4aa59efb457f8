package chat

import (
	"time"
)

// Chat is the domain aggregate for a conversation and its invariants.
//
// Notes:
//   - The application layer hydrates it from the repository before invoking
//     its behaviors; persistence is handled outside the domain.
//   - Membership is fixed by the conversation identifier, so no lookup is
//     needed to answer HasParticipant.
type Chat struct {
	Conversation Conversation
	MaxLength    int
}

// HasParticipant tells whether userID is part of this chat.
func (c *Chat) HasParticipant(userID string) bool {
	if c == nil || c.Conversation.ID == "" {
		return false
	}
	return c.Conversation.ID.Has(userID)
}

// Recipient returns the participant that receives messages sent by senderID.
func (c *Chat) Recipient(senderID string) (string, error) {
	other, ok := c.Conversation.ID.Other(senderID)
	if !ok {
		return "", ErrNotParticipant
	}
	return other, nil
}

// PostMessage applies domain rules and returns a validated message ready to persist.
//
// Validations:
// - Conversation/message identity must match
// - Sender must be a participant
// - Body must survive sanitizing and fit MaxLength
//
// Archiving does not block posting: an archived conversation keeps receiving
// messages and the archive flags are left as they are.
func (c *Chat) PostMessage(m Message, now time.Time) (Message, error) {
	if m.ConversationID == "" || m.ConversationID != c.Conversation.ID {
		return Message{}, ErrNotFound
	}

	sender, err := NormalizeParticipantID(m.SenderID)
	if err != nil || !c.HasParticipant(sender) {
		return Message{}, ErrNotParticipant
	}
	m.SenderID = sender

	if now.IsZero() {
		now = time.Now()
	}
	m.CreatedAt = now.UTC()

	msg, err := NewMessage(m, c.MaxLength)
	if err != nil {
		return Message{}, err
	}
	return *msg, nil
}
