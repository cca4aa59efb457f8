package controller

import (
	"time"

	chat "changanet/internal/pkg/chat/application/domain"
)

type participantResponse struct {
	UserID      string     `json:"user_id"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	LastReadMsg *string    `json:"last_read_message_id,omitempty"`
}

type conversationResponse struct {
	ID             string                `json:"id"`
	ParticipantA   string                `json:"participant_a"`
	ParticipantB   string                `json:"participant_b"`
	CreatedAt      time.Time             `json:"created_at"`
	LastActivityAt time.Time             `json:"last_activity_at"`
	Participants   []participantResponse `json:"participants"`
}

func toConversationResponse(c chat.Conversation) conversationResponse {
	out := conversationResponse{
		ID:             c.ID.String(),
		ParticipantA:   c.ParticipantA,
		ParticipantB:   c.ParticipantB,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
		Participants:   make([]participantResponse, 0, len(c.Participants)),
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, participantResponse{
			UserID:      p.UserID,
			Archived:    p.ArchivedAt != nil,
			ArchivedAt:  p.ArchivedAt,
			LastReadMsg: p.LastReadMsg,
		})
	}
	return out
}
