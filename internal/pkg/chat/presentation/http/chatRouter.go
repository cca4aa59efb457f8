package http

import (
	"github.com/gin-gonic/gin"

	"changanet/internal/pkg/chat/presentation/controller"
	"changanet/internal/pkg/chat/presentation/middleware"
)

// Controllers groups the chat endpoints registered by RegisterRoutes.
type Controllers struct {
	Open      *controller.OpenConversationController
	List      *controller.ListConversationsController
	Send      *controller.SendMessageController
	Get       *controller.GetMessageController
	Typing    *controller.SetTypingController
	Archive   *controller.ArchiveConversationController
	Unarchive *controller.ArchiveConversationController
	Read      *controller.MarkReadController
	Socket    *controller.ChatSocketController
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group.
// With a non-empty jwtSecret every REST endpoint requires a bearer token; the
// websocket endpoint checks its own token since browsers cannot set headers.
func RegisterRoutes(g *gin.RouterGroup, ctl Controllers, jwtSecret string) {
	conversations := g.Group("/conversations")

	// GET /api/v1/conversations/ws -> websocket endpoint for realtime chat
	conversations.GET("/ws", ctl.Socket.Handle())

	rest := conversations.Group("")
	if jwtSecret != "" {
		rest.Use(middleware.AuthMiddleware(jwtSecret))
	}

	// POST /api/v1/conversations -> open (or fetch) the conversation of a pair
	rest.POST("", ctl.Open.Handle())
	// GET /api/v1/conversations?participant_id= -> inbox of a participant
	rest.GET("", ctl.List.Handle())

	// POST /api/v1/conversations/:conversationId/messages -> send a message
	rest.POST("/:conversationId/messages", ctl.Send.Handle())
	// GET /api/v1/conversations/:conversationId/messages -> history, newest first
	rest.GET("/:conversationId/messages", ctl.Get.Handle())

	rest.POST("/:conversationId/typing", ctl.Typing.Handle())
	rest.POST("/:conversationId/archive", ctl.Archive.Handle())
	rest.POST("/:conversationId/unarchive", ctl.Unarchive.Handle())
	rest.POST("/:conversationId/read", ctl.Read.Handle())
}
