// Package syncmap provides a minimal type-safe concurrent map.
package syncmap

import "sync"

// Map is a generic map safe for concurrent use. It favors simplicity over
// the lock-free tricks of sync.Map; contention on these tables is low.
type Map[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{data: make(map[K]V)}
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Put stores value under key, replacing any previous entry.
func (m *Map[K, V]) Put(key K, value V) {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
}

// PutIfAbsent stores value under key only when no entry exists yet and
// reports whether the store happened. This is the atomic primitive behind
// duplicate-free registration.
func (m *Map[K, V]) PutIfAbsent(key K, value V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false
	}
	m.data[key] = value
	return true
}

// Delete removes the entry under key, if any.
func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Range calls fn for each entry until fn returns false. The map lock is
// held for the duration, so fn must not call back into the map.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, v := range m.data {
		if !fn(k, v) {
			return
		}
	}
}
