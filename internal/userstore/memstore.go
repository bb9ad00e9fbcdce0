package userstore

import (
	"context"
	"maps"
	"sync"
)

// MemStore is an in-memory [Store] for tests and local development.
// Safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]map[Role]Address
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]map[Role]Address)}
}

// Get returns a copy of the user's addresses.
func (s *MemStore) Get(_ context.Context, userID string) (map[Role]Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.users[userID]
	if !ok {
		return map[Role]Address{}, nil
	}
	return maps.Clone(stored), nil
}

// Update stores one role's address for the user.
func (s *MemStore) Update(_ context.Context, userID string, role Role, addr Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users[userID] == nil {
		s.users[userID] = make(map[Role]Address, 2)
	}
	s.users[userID][role] = addr
	return nil
}

// Delete removes all data for the user.
func (s *MemStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, userID)
	return nil
}
