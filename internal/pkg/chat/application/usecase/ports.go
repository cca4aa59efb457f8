package usecase

import "context"

// Notifier pushes an encoded event to every live connection of a user and
// returns how many accepted it. realtime.Router implements it.
type Notifier interface {
	NotifyUser(userID string, payload []byte) int
}

// RateLimiter counts one event for key and reports whether it is allowed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// DeliveryScheduler arranges for a message to be marked delivered once a
// recipient connection accepted it.
type DeliveryScheduler interface {
	ScheduleDelivered(ctx context.Context, messageID string) error
}

type noopNotifier struct{}

func (noopNotifier) NotifyUser(string, []byte) int { return 0 }

type allowAll struct{}

func (allowAll) Allow(context.Context, string) (bool, error) { return true, nil }
