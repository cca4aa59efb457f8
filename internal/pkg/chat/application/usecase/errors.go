package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"changanet/internal/infrastructure/metrics"
	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"
	userrepo "changanet/internal/repository/port"
)

// StoreRetry bounds the retries of transient store failures.
type StoreRetry struct {
	Attempts uint64
	Delay    time.Duration
}

// DefaultStoreRetry retries three times starting at 50ms.
var DefaultStoreRetry = StoreRetry{Attempts: 3, Delay: 50 * time.Millisecond}

func (p StoreRetry) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Delay > 0 {
		b.InitialInterval = p.Delay
	}
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.Attempts), ctx)
}

// withRetry runs fn until it succeeds, fails permanently or the retry budget
// is spent. Only ErrUnavailable from either store is retried.
func withRetry[T any](ctx context.Context, p StoreRetry, operation string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	v, err := backoff.RetryWithData(func() (T, error) {
		if attempt > 0 {
			metrics.StoreRetries.WithLabelValues(operation).Inc()
		}
		attempt++
		v, err := fn(ctx)
		if err != nil && !isTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx))
	if err != nil {
		return v, mapStoreError(err)
	}
	return v, nil
}

func isTransient(err error) bool {
	return errors.Is(err, repository.ErrUnavailable) || errors.Is(err, userrepo.ErrUnavailable)
}

// mapStoreError turns repository errors into the chat taxonomy.
func mapStoreError(err error) error {
	var ce *chat.Error
	switch {
	case errors.As(err, &ce):
		return err
	case errors.Is(err, repository.ErrConversationNotFound):
		return chat.ErrNotFound
	case errors.Is(err, repository.ErrMessageNotFound):
		return chat.Errorf(chat.KindNotFound, "message not found")
	case isTransient(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return chat.StoreUnavailable(err)
	default:
		return chat.StoreUnavailable(fmt.Errorf("unexpected store error: %w", err))
	}
}

// notify encodes ev and pushes it to userID, returning the accepting connection count.
func notify(n Notifier, userID string, ev chat.Event) int {
	payload, err := ev.Encode()
	if err != nil {
		return 0
	}
	delivered := n.NotifyUser(userID, payload)
	metrics.RecordNotified(string(ev.Type), delivered)
	return delivered
}
