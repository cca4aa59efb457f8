package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"changanet/internal/pkg/chat/application/usecase"
)

// ListConversationsController handles GET /conversations
type ListConversationsController struct {
	UC      *usecase.ListConversationsUseCase
	Timeout time.Duration
}

func NewListConversationsController(uc *usecase.ListConversationsUseCase, timeout time.Duration) *ListConversationsController {
	return &ListConversationsController{UC: uc, Timeout: timeout}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		participantID := c.Query("participant_id")
		if participantID == "" {
			respondBadRequest(c, errors.New("participant_id is required"))
			return
		}
		if !authorizeActor(c, participantID) {
			return
		}
		includeArchived, _ := strconv.ParseBool(c.Query("include_archived"))
		limit, offset := pageParams(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		convs, err := h.UC.Execute(ctx, usecase.ListConversationsInput{
			ParticipantID:   participantID,
			IncludeArchived: includeArchived,
			Limit:           limit,
			Offset:          offset,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		out := make([]conversationResponse, 0, len(convs))
		for _, conv := range convs {
			out = append(out, toConversationResponse(conv))
		}
		c.JSON(http.StatusOK, gin.H{
			"conversations": out,
			"limit":         limit,
			"offset":        offset,
			"count":         len(out),
		})
	}
}

// pageParams reads limit/offset with the defaults 50 and 0; limit is capped at 200.
func pageParams(c *gin.Context) (int, int) {
	limit := 50
	offset := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 200)
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
