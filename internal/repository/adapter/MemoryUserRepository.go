package adapter

import (
	"context"
	"sync"

	repository "changanet/internal/repository/port"
)

// MemoryUserRepository keeps a set of known user ids. With AcceptAll set every
// id is reported as existing, which is handy for local runs.
type MemoryUserRepository struct {
	AcceptAll bool

	mu    sync.RWMutex
	users map[string]struct{}
}

func NewMemoryUserRepository(ids ...string) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		r.users[id] = struct{}{}
	}
	return r
}

var _ repository.UserDirectory = (*MemoryUserRepository)(nil)

func (r *MemoryUserRepository) Add(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.users[id] = struct{}{}
	}
}

func (r *MemoryUserRepository) Exists(_ context.Context, userID string) (bool, error) {
	if r.AcceptAll {
		return true, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok, nil
}
