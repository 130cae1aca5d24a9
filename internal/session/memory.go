package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps runtime state in process memory. This is the default:
// sessions are deliberately ephemeral and a restart returns every user to
// idle.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]*UserState
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]*UserState)}
}

// Get returns the stored state or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, userID int64) (*UserState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return state, nil
}

// Set replaces the stored state.
func (m *MemoryStore) Set(_ context.Context, userID int64, state *UserState) error {
	state.UserID = userID
	state.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.states[userID] = state
	m.mu.Unlock()
	return nil
}

// Clear removes the stored state. Clearing an absent state is a no-op.
func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.states, userID)
	m.mu.Unlock()
	return nil
}

// Len reports how many users currently hold runtime state.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Counts reports how many users are waiting on input and on multi-select.
func (m *MemoryStore) Counts() (inputs, selects int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.states {
		if s.Input != nil {
			inputs++
		}
		if s.MultiSelect != nil {
			selects++
		}
	}
	return inputs, selects
}
