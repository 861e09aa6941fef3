package cache

import (
	"context"
	"sync"
)

// Store is a small key-value store used for state that should survive
// process restarts when a backing service is configured, such as the
// last-reconciled schema tuple.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Ping checks the backing service.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// Memory is an in-process Store used when no cache backend is configured.
// Entries do not survive restarts, which only costs one extra metadata
// round-trip at the next setup.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
