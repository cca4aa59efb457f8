package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"changanet/internal/infrastructure/realtime"
	chat "changanet/internal/pkg/chat/application/domain"
	"changanet/internal/pkg/chat/application/usecase"
	"changanet/internal/pkg/chat/presentation/middleware"
)

const (
	defaultReadTimeout = 60 * time.Second
	maxFrameSize       = 64 << 10
)

// ChatSocketController handles the websocket endpoint for realtime chat traffic.
// Each socket is one session of a user; events for the user reach all of them.
type ChatSocketController struct {
	Router    *realtime.Router
	SendUC    *usecase.SendMessageUseCase
	TypingUC  *usecase.SetTypingUseCase
	ReadUC    *usecase.MarkReadUseCase
	Timeout   time.Duration
	JWTSecret string
	Log       zerolog.Logger

	upgrader websocket.Upgrader
}

func NewChatSocketController(
	router *realtime.Router,
	send *usecase.SendMessageUseCase,
	typing *usecase.SetTypingUseCase,
	read *usecase.MarkReadUseCase,
	allowedOrigins []string,
	jwtSecret string,
	timeout time.Duration,
	log zerolog.Logger,
) *ChatSocketController {
	return &ChatSocketController{
		Router:    router,
		SendUC:    send,
		TypingUC:  typing,
		ReadUC:    read,
		Timeout:   timeout,
		JWTSecret: jwtSecret,
		Log:       log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows any origin when the list is empty or contains "*".
// Requests without an Origin header come from non-browser clients and pass.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

type inboundFrame struct {
	Type           string  `json:"type"`
	RequestID      string  `json:"request_id,omitempty"`
	ConversationID string  `json:"conversation_id"`
	Body           string  `json:"body,omitempty"`
	IsTyping       bool    `json:"is_typing,omitempty"`
	UpToMessageID  *string `json:"up_to_message_id,omitempty"`
}

type errorFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

type ackFrame struct {
	Type      string        `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	For       string        `json:"for,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Updated   *int64        `json:"updated,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := ctl.identify(c)
		if !ok {
			return
		}

		ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response
			ctl.Log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.Router.Attach(conn)
		log := ctl.Log.With().Str("user_id", userID).Str("session_id", conn.ID).Logger()
		log.Debug().Msg("session opened")
		defer func() {
			ctl.Router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
			log.Debug().Msg("session closed")
		}()

		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.reply(conn, ackFrame{Type: "connected", UserID: userID, SessionID: conn.ID})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					log.Debug().Err(err).Msg("read failed")
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "", kindInvalidRequest, "invalid payload")
				continue
			}

			switch frame.Type {
			case "message":
				ctl.handleMessage(c.Request.Context(), conn, frame)
			case "typing":
				ctl.handleTyping(c.Request.Context(), conn, frame)
			case "read":
				ctl.handleRead(c.Request.Context(), conn, frame)
			default:
				ctl.replyError(conn, frame.RequestID, kindInvalidRequest, "unknown frame type")
			}
		}
	}
}

// identify resolves the session user from the JWT subject or ?user_id=.
func (ctl *ChatSocketController) identify(c *gin.Context) (string, bool) {
	raw := c.Query("user_id")
	if ctl.JWTSecret != "" {
		token := c.Query("token")
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		sub, err := middleware.ParseSubject(token, ctl.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{errorBody{Kind: "unauthorized", Message: err.Error()}})
			return "", false
		}
		if raw == "" {
			raw = sub
		}
		c.Set(middleware.SubjectKey, sub)
		if !authorizeActor(c, raw) {
			return "", false
		}
	}
	if raw == "" {
		respondBadRequest(c, errors.New("user_id is required"))
		return "", false
	}
	userID, err := chat.NormalizeParticipantID(raw)
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return userID, true
}

func (ctl *ChatSocketController) handleMessage(parent context.Context, conn *realtime.Connection, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(parent, ctl.Timeout)
	defer cancel()

	msg, err := ctl.SendUC.Execute(ctx, usecase.SendMessageInput{
		ConversationID: frame.ConversationID,
		SenderID:       conn.UserID,
		Body:           frame.Body,
		OriginSession:  conn.ID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, frame.RequestID, err)
		return
	}
	ctl.reply(conn, ackFrame{Type: "ack", RequestID: frame.RequestID, For: frame.Type, Message: msg})
}

func (ctl *ChatSocketController) handleTyping(parent context.Context, conn *realtime.Connection, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(parent, ctl.Timeout)
	defer cancel()

	err := ctl.TypingUC.Execute(ctx, usecase.SetTypingInput{
		ConversationID: frame.ConversationID,
		SenderID:       conn.UserID,
		IsTyping:       frame.IsTyping,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, frame.RequestID, err)
		return
	}
	// typing is fire and forget; only explicit requests get an ack
	if frame.RequestID != "" {
		ctl.reply(conn, ackFrame{Type: "ack", RequestID: frame.RequestID, For: frame.Type})
	}
}

func (ctl *ChatSocketController) handleRead(parent context.Context, conn *realtime.Connection, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(parent, ctl.Timeout)
	defer cancel()

	updated, err := ctl.ReadUC.Execute(ctx, usecase.MarkReadInput{
		ConversationID: frame.ConversationID,
		ReaderID:       conn.UserID,
		UpToMessageID:  frame.UpToMessageID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, frame.RequestID, err)
		return
	}
	ctl.reply(conn, ackFrame{Type: "ack", RequestID: frame.RequestID, For: frame.Type, Updated: &updated})
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, requestID string, err error) {
	var ce *chat.Error
	if !errors.As(err, &ce) {
		ctl.Log.Error().Err(err).Msg("unexpected socket error")
		ctl.replyError(conn, requestID, kindInternal, "unexpected error")
		return
	}
	msg := ce.Message
	if ce.Kind == chat.KindStoreUnavailable {
		msg = chat.ErrStoreUnavailable.Message
	}
	ctl.replyError(conn, requestID, string(ce.Kind), msg)
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, requestID, kind, message string) {
	ctl.reply(conn, errorFrame{Type: "error", RequestID: requestID, Kind: kind, Message: message})
}

func (ctl *ChatSocketController) reply(conn *realtime.Connection, frame any) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
