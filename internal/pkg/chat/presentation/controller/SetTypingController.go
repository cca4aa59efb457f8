package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"changanet/internal/pkg/chat/application/usecase"
)

// SetTypingController handles POST /conversations/:conversationId/typing
type SetTypingController struct {
	UC      *usecase.SetTypingUseCase
	Timeout time.Duration
}

func NewSetTypingController(uc *usecase.SetTypingUseCase, timeout time.Duration) *SetTypingController {
	return &SetTypingController{UC: uc, Timeout: timeout}
}

type setTypingRequest struct {
	SenderID string `json:"sender_id" binding:"required,uuid_rfc4122"`
	IsTyping *bool  `json:"is_typing" binding:"required"`
}

func (h *SetTypingController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setTypingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
		if !authorizeActor(c, req.SenderID) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		if err := h.UC.Execute(ctx, usecase.SetTypingInput{
			ConversationID: c.Param("conversationId"),
			SenderID:       req.SenderID,
			IsTyping:       *req.IsTyping,
		}); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "is_typing": *req.IsTyping})
	}
}
