package storage

import (
	"context"
	"errors"
	"sync"
)

// MemoryKeeper represents an in-memory keeper with locking mechanisms
type MemoryKeeper struct {
	mx     sync.RWMutex
	values map[string]string
}

func NewMemoryKeeper() *MemoryKeeper {
	return &MemoryKeeper{values: make(map[string]string)}
}

func (m *MemoryKeeper) Get(_ context.Context, key string) (string, bool, error) {
	m.mx.RLock()
	defer m.mx.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKeeper) Update(_ context.Context, key string, fn func(string, bool) (string, error)) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	current, ok := m.values[key]
	next, err := fn(current, ok)
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	m.values[key] = next
	return nil
}

// Set stores value under key directly.
func (m *MemoryKeeper) Set(key, value string) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.values[key] = value
}

func (m *MemoryKeeper) Ping(context.Context) bool {
	return true
}

func (m *MemoryKeeper) Close() bool {
	return true
}
