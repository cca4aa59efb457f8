package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"changanet/internal/pkg/chat/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint)
type SendMessageController struct {
	UC      *usecase.SendMessageUseCase
	Timeout time.Duration
}

func NewSendMessageController(uc *usecase.SendMessageUseCase, timeout time.Duration) *SendMessageController {
	return &SendMessageController{UC: uc, Timeout: timeout}
}

// sendMessageRequest is the DTO for the HTTP request body. An empty body is
// left to the use case so it is reported as invalid_message.
type sendMessageRequest struct {
	SenderID string `json:"sender_id" binding:"required,uuid_rfc4122"`
	Body     string `json:"body"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
		if !authorizeActor(c, req.SenderID) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		msg, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			ConversationID: c.Param("conversationId"),
			SenderID:       req.SenderID,
			Body:           req.Body,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}
