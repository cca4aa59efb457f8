package repository

import (
	"context"
	"errors"
)

// ErrUnavailable marks a transient directory failure that may be retried.
var ErrUnavailable = errors.New("user directory: unavailable")

// UserDirectory answers whether a marketplace user exists. The users table is
// owned by the marketplace API; the chat core only reads it.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}
