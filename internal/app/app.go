// Package app assembles the chat use cases, controllers and gin engine from
// already constructed infrastructure.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	v1 "changanet/cmd/api/router/v1"
	"changanet/internal/config"
	cacheport "changanet/internal/infrastructure/cache/port"
	qport "changanet/internal/infrastructure/queue/port"
	"changanet/internal/infrastructure/ratelimit"
	"changanet/internal/infrastructure/realtime"
	"changanet/internal/pkg/chat/application/task"
	"changanet/internal/pkg/chat/application/usecase"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
	"changanet/internal/pkg/chat/presentation/controller"
	httpHandler "changanet/internal/pkg/chat/presentation/http"
	userrepo "changanet/internal/repository/port"
)

// Infra carries the adapters chosen by the caller.
type Infra struct {
	Repo  repository.ChatRepository
	Users userrepo.UserDirectory
	Cache cacheport.Cache
	// Queue is optional; without it delivered marks run inline.
	Queue qport.Client
	// Checks are run by /healthz.
	Checks map[string]func(context.Context) error
}

type App struct {
	Engine        *gin.Engine
	Router        *realtime.Router
	MarkDelivered *usecase.MarkDeliveredUseCase

	typing *usecase.SetTypingUseCase
}

func New(cfg *config.Config, infra Infra, log zerolog.Logger) *App {
	retry := usecase.StoreRetry{Attempts: cfg.StoreRetries, Delay: cfg.StoreRetryDelay}
	router := realtime.NewRouter()
	limiter := ratelimit.NewWindow(infra.Cache, "ratelimit:send", cfg.RateLimitMessages, cfg.RateLimitWindow)

	markDelivered := usecase.NewMarkDeliveredUseCase(infra.Repo, retry)
	var scheduler usecase.DeliveryScheduler = task.NewInlineDeliveryScheduler(markDelivered, log)
	if infra.Queue != nil {
		scheduler = task.NewQueueDeliveryScheduler(infra.Queue)
	}

	open := usecase.NewOpenConversationUseCase(infra.Repo, infra.Users, retry, log)
	archive := usecase.NewArchiveConversationUseCase(infra.Repo, router, retry, log)
	list := usecase.NewListConversationsUseCase(infra.Repo, retry)
	send := usecase.NewSendMessageUseCase(infra.Repo, limiter, router, scheduler, retry,
		usecase.SendMessageOptions{MaxLength: cfg.MessageMaxLength}, log)
	get := usecase.NewGetMessageUseCase(infra.Repo, retry)
	read := usecase.NewMarkReadUseCase(infra.Repo, router, retry)
	typing := usecase.NewSetTypingUseCase(router, cfg.TypingTTL)

	timeout := cfg.RequestTimeout
	controllers := httpHandler.Controllers{
		Open:      controller.NewOpenConversationController(open, timeout),
		List:      controller.NewListConversationsController(list, timeout),
		Send:      controller.NewSendMessageController(send, timeout),
		Get:       controller.NewGetMessageController(get, timeout),
		Typing:    controller.NewSetTypingController(typing, timeout),
		Archive:   controller.NewArchiveConversationController(archive, true, timeout),
		Unarchive: controller.NewArchiveConversationController(archive, false, timeout),
		Read:      controller.NewMarkReadController(read, timeout),
		Socket: controller.NewChatSocketController(router, send, typing, read,
			cfg.AllowedOrigins, cfg.AuthJWTSecret, timeout, log),
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))
	engine.GET("/healthz", healthz(infra.Checks))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1.RegisterRoutes(engine, controllers, cfg.AuthJWTSecret)

	return &App{Engine: engine, Router: router, MarkDelivered: markDelivered, typing: typing}
}

// Close drops pending typing expirations and disconnects every websocket.
func (a *App) Close() {
	a.typing.Close()
	a.Router.Close()
}

func healthz(checks map[string]func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
