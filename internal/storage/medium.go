package storage

import (
	"sync"
)

// Medium is a durable key/value namespace holding serialized collections
type Medium interface {
	// Get returns the value stored under key. ok is false when the key
	// has never been written.
	Get(key string) (value string, ok bool, err error)
	// Set replaces the value stored under key.
	Set(key, value string) error
}

// MemoryMedium is an in-process Medium, mainly for tests
type MemoryMedium struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryMedium creates an empty in-memory medium
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{data: make(map[string]string)}
}

// Get returns the value stored under key
func (m *MemoryMedium) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

// Set replaces the value stored under key
func (m *MemoryMedium) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return nil
}

// Keys returns the keys currently present
func (m *MemoryMedium) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
