package session

import (
	"context"
	"sync"
)

// MemoryStore keeps conversation state in process memory, the default
// backend when no Redis address is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]State)}
}

// Get returns the chat's state, or a zero state when none is stored.
func (s *MemoryStore) Get(ctx context.Context, chatID int64) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[chatID]
	if !ok {
		return &State{}, nil
	}
	copy := state
	return &copy, nil
}

// Set stores the chat's state.
func (s *MemoryStore) Set(ctx context.Context, chatID int64, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = *state
	return nil
}

// Delete drops the chat's state.
func (s *MemoryStore) Delete(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
	return nil
}
