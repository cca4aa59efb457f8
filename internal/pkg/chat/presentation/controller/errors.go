package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	chat "changanet/internal/pkg/chat/application/domain"
	"changanet/internal/pkg/chat/presentation/middleware"
)

// Kinds produced by the HTTP layer itself, next to the chat error kinds.
const (
	kindInvalidRequest = "invalid_request"
	kindForbidden      = "forbidden"
	kindInternal       = "internal_error"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// statusFor maps a chat error kind to its HTTP status.
func statusFor(kind chat.ErrorKind) int {
	switch kind {
	case chat.KindInvalidParticipants, chat.KindMalformedIdentifier, chat.KindInvalidMessage:
		return http.StatusBadRequest
	case chat.KindNotParticipant:
		return http.StatusForbidden
	case chat.KindNotFound:
		return http.StatusNotFound
	case chat.KindRateLimited:
		return http.StatusTooManyRequests
	case chat.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error":{"kind","message"}}. Store failures
// hide their cause from clients.
func respondError(c *gin.Context, err error) {
	var ce *chat.Error
	if !errors.As(err, &ce) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{errorBody{Kind: kindInternal, Message: "unexpected error"}})
		return
	}
	msg := ce.Message
	if ce.Kind == chat.KindStoreUnavailable {
		msg = chat.ErrStoreUnavailable.Message
	}
	c.AbortWithStatusJSON(statusFor(ce.Kind), errorResponse{errorBody{Kind: string(ce.Kind), Message: msg}})
}

func respondBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{errorBody{Kind: kindInvalidRequest, Message: err.Error()}})
}

// authorizeActor rejects requests whose authenticated subject differs from the
// acting participant. Without auth every actor is accepted.
func authorizeActor(c *gin.Context, actorID string) bool {
	sub, ok := middleware.Subject(c)
	if !ok {
		return true
	}
	norm, err := chat.NormalizeParticipantID(actorID)
	if err == nil && norm == sub {
		return true
	}
	c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{errorBody{Kind: kindForbidden, Message: "token subject does not match the acting participant"}})
	return false
}

// authorizeEither accepts the request when the subject is any of ids.
func authorizeEither(c *gin.Context, ids ...string) bool {
	sub, ok := middleware.Subject(c)
	if !ok {
		return true
	}
	for _, id := range ids {
		if norm, err := chat.NormalizeParticipantID(id); err == nil && norm == sub {
			return true
		}
	}
	c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{errorBody{Kind: kindForbidden, Message: "token subject is not a participant"}})
	return false
}
