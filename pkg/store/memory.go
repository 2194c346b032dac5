package store

import "sync"

// MemoryKV keeps collections in-process. Used for tests and local runs
// without Redis or Postgres.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore builds a Store over an in-process map.
func NewMemoryStore() Store {
	return newKVStore(&MemoryKV{data: make(map[string][]byte)})
}

// Load returns a copy of the stored value.
func (m *MemoryKV) Load(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Store replaces the value under key.
func (m *MemoryKV) Store(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}
