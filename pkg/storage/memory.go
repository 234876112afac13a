package storage

import (
	"context"
	"sync"
)

// Memory keeps values in-process. Several cart stores sharing one Memory behave
// like several views sharing browser storage.
type Memory struct {
	mu       sync.RWMutex
	values   map[string][]byte
	watchers map[string]map[chan struct{}]struct{}
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string][]byte),
		watchers: make(map[string]map[chan struct{}]struct{}),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.values[key] = stored
	m.mu.Unlock()

	m.notify(key)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()

	m.notify(key)
	return nil
}

// Watch signals on every Set/Delete of key until ctx is done.
func (m *Memory) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	if m.watchers[key] == nil {
		m.watchers[key] = make(map[chan struct{}]struct{})
	}
	m.watchers[key][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers[key], ch)
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) notify(key string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.watchers[key] {
		signal(ch)
	}
}
