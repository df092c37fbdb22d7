package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in process memory. Watch only sees writes made
// through the same instance.
type MemoryBackend struct {
	mu          sync.RWMutex
	values      map[string][]byte
	subscribers map[chan Change]struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values:      make(map[string][]byte),
		subscribers: make(map[chan Change]struct{}),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	if err := validateName(key); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.values[key] = stored
	m.mu.Unlock()

	m.notify(Change{Key: key})
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()

	m.notify(Change{Key: key, Deleted: true})
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	m.values = make(map[string][]byte)
	m.mu.Unlock()

	m.notify(Change{Cleared: true})
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// Watch returns a channel that is closed when ctx is done.
func (m *MemoryBackend) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 16)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subscribers, ch)
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *MemoryBackend) notify(c Change) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subscribers {
		// Slow subscribers miss hints rather than block writers.
		select {
		case ch <- c:
		default:
		}
	}
}
