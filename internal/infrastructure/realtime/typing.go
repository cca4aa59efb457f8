package realtime

import (
	"sync"
	"time"
)

// DefaultTypingTTL is how long a typing=true signal stays valid without a refresh.
const DefaultTypingTTL = 6 * time.Second

type typingKey struct {
	conversationID string
	senderID       string
}

type typingTimer struct {
	timer *time.Timer
	gen   uint64
}

// TypingTracker expires typing indicators that were never cleared. Each
// (conversation, sender) pair holds at most one timer; when it fires the
// expire callback runs once, outside the tracker's lock.
type TypingTracker struct {
	ttl      time.Duration
	onExpire func(conversationID, senderID string)

	mu     sync.Mutex
	gen    uint64
	timers map[typingKey]typingTimer
	closed bool
}

func NewTypingTracker(ttl time.Duration, onExpire func(conversationID, senderID string)) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{
		ttl:      ttl,
		onExpire: onExpire,
		timers:   make(map[typingKey]typingTimer),
	}
}

// Touch arms or refreshes the timer of sender in conversation.
func (t *TypingTracker) Touch(conversationID, senderID string) {
	key := typingKey{conversationID: conversationID, senderID: senderID}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if prev, ok := t.timers[key]; ok {
		prev.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timers[key] = typingTimer{
		gen:   gen,
		timer: time.AfterFunc(t.ttl, func() { t.expire(key, gen) }),
	}
}

// Stop cancels the timer and reports whether one was armed.
func (t *TypingTracker) Stop(conversationID, senderID string) bool {
	key := typingKey{conversationID: conversationID, senderID: senderID}

	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.timers[key]
	if !ok {
		return false
	}
	cur.timer.Stop()
	delete(t.timers, key)
	return true
}

// Active reports whether sender is currently marked as typing.
func (t *TypingTracker) Active(conversationID, senderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[typingKey{conversationID: conversationID, senderID: senderID}]
	return ok
}

// Close stops every timer; pending expirations are dropped.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for key, cur := range t.timers {
		cur.timer.Stop()
		delete(t.timers, key)
	}
}

func (t *TypingTracker) expire(key typingKey, gen uint64) {
	t.mu.Lock()
	cur, ok := t.timers[key]
	if !ok || cur.gen != gen {
		// refreshed or stopped after the timer fired
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire(key.conversationID, key.senderID)
	}
}
