package storage

import "sync"

// MemoryKV is an in-memory BlobStore used by tests and by units that
// run without a durable medium. It can be made to fail writes to
// exercise storage-error paths.
type MemoryKV struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	counters map[string]int64

	// FailWrites makes every mutating call return ErrWriteFailed.
	FailWrites bool
	// Commits counts Commit calls.
	Commits int
}

// ErrWriteFailed is returned by a MemoryKV with FailWrites set.
var ErrWriteFailed = errString("storage: write failed")

type errString string

func (e errString) Error() string { return string(e) }

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		blobs:    make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

func (m *MemoryKV) SetBlob(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrWriteFailed
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.blobs[key] = cp
	return nil
}

func (m *MemoryKV) GetBlob(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (m *MemoryKV) BlobSize(key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.blobs[key]
	if !ok {
		return 0, ErrNotFound
	}
	return len(value), nil
}

func (m *MemoryKV) Erase(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrWriteFailed
	}
	delete(m.blobs, key)
	delete(m.counters, key)
	return nil
}

func (m *MemoryKV) SetCounter(key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrWriteFailed
	}
	m.counters[key] = value
	return nil
}

func (m *MemoryKV) GetCounter(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.counters[key]
	if !ok {
		return 0, ErrNotFound
	}
	return value, nil
}

func (m *MemoryKV) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrWriteFailed
	}
	m.Commits++
	return nil
}

func (m *MemoryKV) Close() error { return nil }

// CorruptBlob overwrites a stored blob with garbage of the given
// length, for exercising skip-on-corruption loads.
func (m *MemoryKV) CorruptBlob(key string, length int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	garbage := make([]byte, length)
	for i := range garbage {
		garbage[i] = 0xAB
	}
	m.blobs[key] = garbage
}
