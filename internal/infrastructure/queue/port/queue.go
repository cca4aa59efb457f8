package port

import (
	"context"
	"time"
)

// Task is a background job with a stable type name and opaque payload bytes.
// Payload encoding is up to callers.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. Return a non-nil error to signal retry per adapter policy.
// Handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption controls enqueue behavior. Adapters map supported fields to the
// underlying backend as best-effort; unsupported fields may be ignored.
// Zero values mean "unspecified".
type EnqueueOption struct {
	Queue    string        // logical queue name
	MaxRetry int           // max retries for the task
	Timeout  time.Duration // per attempt processing timeout (if supported)
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs background workers that handle tasks.
// Run blocks until ctx is canceled, then drains in-flight tasks.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
