package chat

import (
	"strings"

	"github.com/google/uuid"
)

// conversationIDSeparator never occurs in the canonical text form of a UUID,
// which only uses lowercase hex digits and hyphens.
const conversationIDSeparator = "_"

const canonicalUUIDLen = 36

// ConversationID is the canonical key of a 1:1 conversation. It is derived from
// the two participant ids, sorted, so both orderings produce the same value:
//
//	0c2a...-....-....-....-............_9f1e...-....-....-....-............
type ConversationID string

func (id ConversationID) String() string { return string(id) }

// EncodeConversationID derives the conversation key for a participant pair.
func EncodeConversationID(a, b uuid.UUID) (ConversationID, error) {
	if a == uuid.Nil || b == uuid.Nil || a == b {
		return "", ErrInvalidParticipants
	}
	first, second := a.String(), b.String()
	if second < first {
		first, second = second, first
	}
	return ConversationID(first + conversationIDSeparator + second), nil
}

// ParseConversationID validates raw and returns it as a ConversationID.
// Only strings produced by EncodeConversationID are accepted.
func ParseConversationID(raw string) (ConversationID, error) {
	first, second, ok := strings.Cut(raw, conversationIDSeparator)
	if !ok {
		return "", ErrMalformedIdentifier
	}
	a, err := parseCanonicalUUID(first)
	if err != nil {
		return "", ErrMalformedIdentifier
	}
	b, err := parseCanonicalUUID(second)
	if err != nil {
		return "", ErrMalformedIdentifier
	}
	id, err := EncodeConversationID(a, b)
	if err != nil || string(id) != raw {
		// same participant twice, nil uuid or unsorted pair
		return "", ErrMalformedIdentifier
	}
	return id, nil
}

// Participants returns the two participant ids in canonical order.
// It must only be called on a value returned by Encode/ParseConversationID.
func (id ConversationID) Participants() (string, string) {
	first, second, _ := strings.Cut(string(id), conversationIDSeparator)
	return first, second
}

// Has reports whether userID is one of the two participants.
func (id ConversationID) Has(userID string) bool {
	_, ok := id.Other(userID)
	return ok
}

// Other returns the participant that is not userID.
func (id ConversationID) Other(userID string) (string, bool) {
	norm, err := NormalizeParticipantID(userID)
	if err != nil {
		return "", false
	}
	first, second := id.Participants()
	switch norm {
	case first:
		return second, true
	case second:
		return first, true
	}
	return "", false
}

// NormalizeParticipantID parses any accepted UUID spelling and returns the
// canonical lowercase hyphenated form.
func NormalizeParticipantID(raw string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || u == uuid.Nil {
		return "", ErrInvalidParticipants
	}
	return u.String(), nil
}

func parseCanonicalUUID(s string) (uuid.UUID, error) {
	if len(s) != canonicalUUIDLen {
		return uuid.Nil, ErrMalformedIdentifier
	}
	u, err := uuid.Parse(s)
	if err != nil || u.String() != s {
		return uuid.Nil, ErrMalformedIdentifier
	}
	return u, nil
}
