package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"changanet/internal/pkg/chat/application/usecase"
)

// MarkReadController handles POST /conversations/:conversationId/read
type MarkReadController struct {
	UC      *usecase.MarkReadUseCase
	Timeout time.Duration
}

func NewMarkReadController(uc *usecase.MarkReadUseCase, timeout time.Duration) *MarkReadController {
	return &MarkReadController{UC: uc, Timeout: timeout}
}

type markReadRequest struct {
	ParticipantID string  `json:"participant_id" binding:"required,uuid_rfc4122"`
	UpToMessageID *string `json:"up_to_message_id" binding:"omitempty,uuid_rfc4122"`
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req markReadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
		if !authorizeActor(c, req.ParticipantID) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		updated, err := h.UC.Execute(ctx, usecase.MarkReadInput{
			ConversationID: c.Param("conversationId"),
			ReaderID:       req.ParticipantID,
			UpToMessageID:  req.UpToMessageID,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated})
	}
}
