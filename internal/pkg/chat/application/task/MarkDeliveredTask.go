package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	qport "changanet/internal/infrastructure/queue/port"
	chat "changanet/internal/pkg/chat/application/domain"
	"changanet/internal/pkg/chat/application/usecase"
)

// MarkDeliveredTaskType is the queue task name for the sent -> delivered transition.
const MarkDeliveredTaskType = "chat:mark_delivered"

// MarkDeliveredTaskPayload is the JSON payload transported via the queue.
type MarkDeliveredTaskPayload struct {
	MessageID string `json:"messageId"`
}

const (
	markDeliveredQueue    = "chat"
	markDeliveredRetries  = 5
	markDeliveredDeadline = 10 * time.Second
)

// QueueDeliveryScheduler enqueues mark-delivered tasks for the worker pool.
type QueueDeliveryScheduler struct {
	Q qport.Client
}

func NewQueueDeliveryScheduler(client qport.Client) *QueueDeliveryScheduler {
	return &QueueDeliveryScheduler{Q: client}
}

var _ usecase.DeliveryScheduler = (*QueueDeliveryScheduler)(nil)

func (s *QueueDeliveryScheduler) ScheduleDelivered(ctx context.Context, messageID string) error {
	b, err := json.Marshal(MarkDeliveredTaskPayload{MessageID: messageID})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	opts := qport.EnqueueOption{Queue: markDeliveredQueue, MaxRetry: markDeliveredRetries, Timeout: markDeliveredDeadline}
	_, err = s.Q.Enqueue(ctx, qport.Task{Type: MarkDeliveredTaskType, Payload: b}, opts)
	return err
}

// InlineDeliveryScheduler marks the message delivered in the caller's goroutine.
// It is used when no queue is configured.
type InlineDeliveryScheduler struct {
	UC  *usecase.MarkDeliveredUseCase
	Log zerolog.Logger
}

func NewInlineDeliveryScheduler(uc *usecase.MarkDeliveredUseCase, log zerolog.Logger) *InlineDeliveryScheduler {
	return &InlineDeliveryScheduler{UC: uc, Log: log}
}

var _ usecase.DeliveryScheduler = (*InlineDeliveryScheduler)(nil)

func (s *InlineDeliveryScheduler) ScheduleDelivered(ctx context.Context, messageID string) error {
	ctx, cancel := context.WithTimeout(ctx, markDeliveredDeadline)
	defer cancel()
	_, err := s.UC.Execute(ctx, messageID)
	return err
}

// RegisterMarkDeliveredTask binds the task handler to the provided server.
func RegisterMarkDeliveredTask(srv qport.Server, uc *usecase.MarkDeliveredUseCase, log zerolog.Logger) {
	srv.Register(MarkDeliveredTaskType, HandleMarkDelivered(uc, log))
}

// HandleMarkDelivered returns the handler; only store outages are retried.
func HandleMarkDelivered(uc *usecase.MarkDeliveredUseCase, log zerolog.Logger) qport.Handler {
	return func(ctx context.Context, t qport.Task) error {
		var p MarkDeliveredTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}

		ctx, cancel := context.WithTimeout(ctx, markDeliveredDeadline)
		defer cancel()

		advanced, err := uc.Execute(ctx, p.MessageID)
		switch {
		case err == nil:
			log.Debug().Str("message_id", p.MessageID).Bool("advanced", advanced).Msg("mark delivered")
			return nil
		case errors.Is(err, chat.ErrStoreUnavailable):
			return err
		default:
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}
}
