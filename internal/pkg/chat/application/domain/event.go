package chat

import "encoding/json"

// EventType names a realtime notification pushed to a participant.
type EventType string

const (
	EventMessageReceived        EventType = "message-received"
	EventTypingChanged          EventType = "typing-changed"
	EventConversationArchived   EventType = "conversation-archived"
	EventConversationUnarchived EventType = "conversation-unarchived"
	EventMessagesRead           EventType = "messages-read"
)

// Event is the envelope written to websocket clients.
type Event struct {
	Type           EventType      `json:"type"`
	ConversationID ConversationID `json:"conversation_id"`
	Data           any            `json:"data"`
}

type TypingData struct {
	SenderID string `json:"sender_id"`
	IsTyping bool   `json:"is_typing"`
}

type ArchiveData struct {
	ParticipantID string `json:"participant_id"`
	Archived      bool   `json:"archived"`
}

type ReadData struct {
	ReaderID      string  `json:"reader_id"`
	UpToMessageID *string `json:"up_to_message_id,omitempty"`
	Updated       int64   `json:"updated"`
}

// Encode serializes the event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
