package chat

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine readable class of a chat error.
type ErrorKind string

const (
	KindInvalidParticipants ErrorKind = "invalid_participants"
	KindMalformedIdentifier ErrorKind = "malformed_identifier"
	KindNotParticipant      ErrorKind = "not_participant"
	KindNotFound            ErrorKind = "not_found"
	KindInvalidMessage      ErrorKind = "invalid_message"
	KindRateLimited         ErrorKind = "rate_limited"
	KindStoreUnavailable    ErrorKind = "store_unavailable"
)

// Error is the structured error returned by every chat operation.
// Two Errors match under errors.Is when their kinds are equal, so callers can
// compare against the sentinels below regardless of the detail message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat: %s: %v", e.Message, e.Err)
	}
	return "chat: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Domain-level errors for chat behaviors
var (
	ErrInvalidParticipants = &Error{Kind: KindInvalidParticipants, Message: "a conversation needs two distinct, existing participants"}
	ErrMalformedIdentifier = &Error{Kind: KindMalformedIdentifier, Message: "malformed conversation identifier"}
	ErrNotParticipant      = &Error{Kind: KindNotParticipant, Message: "sender is not a participant in the conversation"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "conversation not found"}
	ErrEmptyMessage        = &Error{Kind: KindInvalidMessage, Message: "empty message"}
	ErrRateLimited         = &Error{Kind: KindRateLimited, Message: "too many messages, slow down"}
	ErrStoreUnavailable    = &Error{Kind: KindStoreUnavailable, Message: "conversation store unavailable"}
)

// Errorf builds an Error of the given kind with a formatted detail message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StoreUnavailable wraps an infrastructure failure that survived retries.
func StoreUnavailable(err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: ErrStoreUnavailable.Message, Err: err}
}

// KindOf reports the kind carried by err, or "" when err is not a chat error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
