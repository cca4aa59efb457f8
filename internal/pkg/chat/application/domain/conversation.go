package chat

import "time"

// Conversation represents a 1:1 thread between two marketplace users.
// It is never deleted, only archived per participant.
type Conversation struct {
	ID             ConversationID `db:"id"`
	ParticipantA   string         `db:"participant_a"`
	ParticipantB   string         `db:"participant_b"`
	CreatedAt      time.Time      `db:"created_at"`
	LastActivityAt time.Time      `db:"last_activity_at"`
	Participants   []Participant
}

// NewConversation builds an unarchived conversation for the pair encoded in id.
func NewConversation(id ConversationID, now time.Time) Conversation {
	a, b := id.Participants()
	now = now.UTC()
	return Conversation{
		ID:             id,
		ParticipantA:   a,
		ParticipantB:   b,
		CreatedAt:      now,
		LastActivityAt: now,
		Participants: []Participant{
			{ConversationID: id, UserID: a, Role: ParticipantRoleMember},
			{ConversationID: id, UserID: b, Role: ParticipantRoleMember},
		},
	}
}

// Participant returns the membership row of userID.
func (c Conversation) Participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// ArchivedFor reports whether userID has archived the conversation.
func (c Conversation) ArchivedFor(userID string) bool {
	p, ok := c.Participant(userID)
	return ok && p.ArchivedAt != nil
}
