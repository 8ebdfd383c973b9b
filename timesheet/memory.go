package timesheet

import (
	"context"
	"sync"

	"github.com/lumina/policy-engine/generic"
)

// MemoryStore keeps entries in a map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Create(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[e.ID]; exists {
		return &generic.ValidationError{Field: "id", Code: "duplicate", Message: "entry " + e.ID + " already exists"}
	}
	m.entries[e.ID] = e
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, &generic.NotFoundError{Kind: "timesheet", ID: id}
	}
	return e, nil
}

func (m *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Entry{}
	for _, e := range m.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	SortEntries(out)
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(Entry) (Entry, error)) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[id]
	if !ok {
		return Entry{}, &generic.NotFoundError{Kind: "timesheet", ID: id}
	}
	next, err := fn(cur)
	if err != nil {
		return Entry{}, err
	}
	next.ID = cur.ID
	m.entries[id] = next
	return next, nil
}
