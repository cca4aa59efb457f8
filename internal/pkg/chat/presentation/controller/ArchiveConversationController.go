package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"changanet/internal/pkg/chat/application/usecase"
)

// ArchiveConversationController serves both /archive (Archived true) and /unarchive.
type ArchiveConversationController struct {
	UC       *usecase.ArchiveConversationUseCase
	Archived bool
	Timeout  time.Duration
}

func NewArchiveConversationController(uc *usecase.ArchiveConversationUseCase, archived bool, timeout time.Duration) *ArchiveConversationController {
	return &ArchiveConversationController{UC: uc, Archived: archived, Timeout: timeout}
}

type archiveRequest struct {
	ParticipantID string `json:"participant_id" binding:"required,uuid_rfc4122"`
}

func (h *ArchiveConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req archiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
		if !authorizeActor(c, req.ParticipantID) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.ArchiveConversationInput{
			ConversationID: c.Param("conversationId"),
			ParticipantID:  req.ParticipantID,
			Archived:       h.Archived,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation": toConversationResponse(*conv)})
	}
}
