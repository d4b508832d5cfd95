package session

import "sync"

// Memo is a per-session table of derived values keyed by entity ID.
// It is owned by one Session and dropped with it.
type Memo[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMemo creates an empty memo table
func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{entries: make(map[string]V)}
}

func (m *Memo[V]) Get(id string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[id]
	return v, ok
}

func (m *Memo[V]) Set(id string, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = v
}

// GetOrLoad returns the memoized value or stores the result of load.
// A failed load leaves the table unchanged, and a value set while load ran wins.
func (m *Memo[V]) GetOrLoad(id string, load func() (V, error)) (V, error) {
	if v, ok := m.Get(id); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[id]; ok {
		return existing, nil
	}
	m.entries[id] = v
	return v, nil
}

// Invalidate forgets one entry
func (m *Memo[V]) Invalidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Clear drops every entry and returns how many there were
func (m *Memo[V]) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]V)
	return n
}

func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns the IDs whose value satisfies keep
func (m *Memo[V]) Keys(keep func(V) bool) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, v := range m.entries {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	return ids
}
