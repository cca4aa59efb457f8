package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"changanet/internal/pkg/chat/application/usecase"
)

// OpenConversationController handles POST /conversations (one controller per endpoint)
type OpenConversationController struct {
	UC      *usecase.OpenConversationUseCase
	Timeout time.Duration
}

func NewOpenConversationController(uc *usecase.OpenConversationUseCase, timeout time.Duration) *OpenConversationController {
	return &OpenConversationController{UC: uc, Timeout: timeout}
}

type openConversationRequest struct {
	ParticipantA string `json:"participant_a" binding:"required,uuid_rfc4122"`
	ParticipantB string `json:"participant_b" binding:"required,uuid_rfc4122"`
}

func (h *OpenConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req openConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
		// the caller must be one side of the conversation
		if !authorizeEither(c, req.ParticipantA, req.ParticipantB) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.OpenConversationInput{
			ParticipantA: req.ParticipantA,
			ParticipantB: req.ParticipantB,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{
			"conversation": toConversationResponse(res.Conversation),
			"created":      res.Created,
		})
	}
}
