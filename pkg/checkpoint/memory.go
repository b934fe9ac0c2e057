package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in memory. It backs tests and runs where
// persistence is disabled.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string]*Checkpoint),
	}
}

// Save stores a deep-enough copy so later mutation by the caller does not
// leak into the stored state.
func (m *MemoryStore) Save(ctx context.Context, cp *Checkpoint) error {
	if err := validateThreadID(cp.ThreadID); err != nil {
		return err
	}

	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()

	stored := *cp
	stored.Turns = make([]Turn, len(cp.Turns))
	copy(stored.Turns, cp.Turns)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cp.ThreadID] = &stored

	return nil
}

// Load returns the stored checkpoint, or (nil, nil) when none exists
func (m *MemoryStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	if err := validateThreadID(threadID); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.checkpoints[threadID]
	if !ok {
		return nil, nil
	}

	cp := *stored
	cp.Turns = make([]Turn, len(stored.Turns))
	copy(cp.Turns, stored.Turns)

	return &cp, nil
}

// Delete removes the checkpoint for a thread
func (m *MemoryStore) Delete(ctx context.Context, threadID string) error {
	if err := validateThreadID(threadID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, threadID)

	return nil
}

// List returns all stored thread ids
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	threads := make([]string, 0, len(m.checkpoints))
	for id := range m.checkpoints {
		threads = append(threads, id)
	}

	return threads, nil
}
