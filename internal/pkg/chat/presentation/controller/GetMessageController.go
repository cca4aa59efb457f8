package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"changanet/internal/pkg/chat/application/usecase"
)

// GetMessageController handles fetching messages by conversation id (one controller per endpoint)
type GetMessageController struct {
	UC      *usecase.GetMessageUseCase
	Timeout time.Duration
}

func NewGetMessageController(uc *usecase.GetMessageUseCase, timeout time.Duration) *GetMessageController {
	return &GetMessageController{UC: uc, Timeout: timeout}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := c.Query("participant_id")
		if viewer == "" {
			respondBadRequest(c, errors.New("participant_id is required"))
			return
		}
		if !authorizeActor(c, viewer) {
			return
		}
		limit, offset := pageParams(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		msgs, err := h.UC.Execute(ctx, usecase.GetMessageInput{
			ConversationID: c.Param("conversationId"),
			ViewerID:       viewer,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"limit":    limit,
			"offset":   offset,
			"count":    len(msgs),
		})
	}
}
