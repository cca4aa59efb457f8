package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageStatus is the delivery state of a message. It only moves forward:
// sent -> delivered -> read.
type MessageStatus int16

const (
	MessageStatusSent      MessageStatus = 0
	MessageStatusDelivered MessageStatus = 1
	MessageStatusRead      MessageStatus = 2
)

// DefaultMaxMessageLength bounds a message body, counted in runes.
const DefaultMaxMessageLength = 4000

func (s MessageStatus) String() string {
	switch s {
	case MessageStatusSent:
		return "sent"
	case MessageStatusDelivered:
		return "delivered"
	case MessageStatusRead:
		return "read"
	}
	return fmt.Sprintf("status(%d)", int16(s))
}

func (s MessageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MessageStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "sent":
		*s = MessageStatusSent
	case "delivered":
		*s = MessageStatusDelivered
	case "read":
		*s = MessageStatusRead
	default:
		return fmt.Errorf("chat: unknown message status %q", text)
	}
	return nil
}

// CanAdvanceTo reports whether the transition s -> next is allowed.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next > s && next <= MessageStatusRead
}

// Message is an immutable log entry in a conversation; only Status changes.
type Message struct {
	ID             string         `db:"id" json:"id"`
	ConversationID ConversationID `db:"conversation_id" json:"conversation_id"`
	SenderID       string         `db:"sender_id" json:"sender_id"`
	Body           string         `db:"body" json:"body"`
	Status         MessageStatus  `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// NewMessage sanitizes and validates m, returning a message ready to persist.
func NewMessage(m Message, maxLength int) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" {
		return nil, Errorf(KindInvalidMessage, "conversation_id and sender_id are required")
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}

	body := strings.TrimSpace(SanitizeBody(m.Body))
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(body); n > maxLength {
		return nil, Errorf(KindInvalidMessage, "message is %d characters long, the limit is %d", n, maxLength)
	}
	m.Body = body
	m.Status = MessageStatusSent

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return &m, nil
}
