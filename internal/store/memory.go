package store

import (
	"context"
	"sync"
)

// MapBackend keeps every collection in process memory. Records are cloned on
// the way in and out, so callers never share a map with the backend.
type MapBackend struct {
	mu    sync.RWMutex
	data  map[string]map[string]Record
	order map[string][]string // insertion order per collection
}

var _ Backend = (*MapBackend)(nil)

func NewMapBackend() *MapBackend {
	return &MapBackend{
		data:  make(map[string]map[string]Record),
		order: make(map[string][]string),
	}
}

func (m *MapBackend) Get(_ context.Context, collection, userID string) ([]Record, error) {
	if _, err := SchemaFor(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, id := range m.order[collection] {
		rec := m.data[collection][id]
		if rec.UserID() == userID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (m *MapBackend) Put(_ context.Context, collection string, rec Record) error {
	sc, err := SchemaFor(collection)
	if err != nil {
		return err
	}
	if err := sc.Check(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	recs, ok := m.data[collection]
	if !ok {
		recs = make(map[string]Record)
		m.data[collection] = recs
	}
	id := rec.ID()
	if _, exists := recs[id]; !exists {
		m.order[collection] = append(m.order[collection], id)
	}
	recs[id] = rec.Clone()
	return nil
}

func (m *MapBackend) Delete(_ context.Context, collection, id string) error {
	if _, err := SchemaFor(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[collection][id]; !ok {
		return nil
	}
	delete(m.data[collection], id)
	ids := m.order[collection]
	for i, v := range ids {
		if v == id {
			m.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of records in a collection across all users.
func (m *MapBackend) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[collection])
}
