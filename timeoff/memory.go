package timeoff

import (
	"context"
	"sync"

	"github.com/lumina/policy-engine/generic"
)

// MemoryRequestStore keeps leave requests in a map.
type MemoryRequestStore struct {
	mu       sync.Mutex
	requests map[string]LeaveRequest
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]LeaveRequest)}
}

func (m *MemoryRequestStore) Create(_ context.Context, req LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.ID]; exists {
		return &generic.ValidationError{Field: "id", Code: "duplicate", Message: "request " + req.ID + " already exists"}
	}
	m.requests[req.ID] = req
	return nil
}

func (m *MemoryRequestStore) Get(_ context.Context, id string) (LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return LeaveRequest{}, &generic.NotFoundError{Kind: "leave_request", ID: id}
	}
	return req, nil
}

func (m *MemoryRequestStore) List(_ context.Context, filter RequestFilter) ([]LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []LeaveRequest{}
	for _, req := range m.requests {
		if filter.Matches(req) {
			out = append(out, req)
		}
	}
	SortRequests(out)
	return out, nil
}

// Update holds the store lock while fn runs, so concurrent reviews of one
// request are serialized.
func (m *MemoryRequestStore) Update(_ context.Context, id string, fn func(LeaveRequest) (LeaveRequest, error)) (LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.requests[id]
	if !ok {
		return LeaveRequest{}, &generic.NotFoundError{Kind: "leave_request", ID: id}
	}
	next, err := fn(current)
	if err != nil {
		return LeaveRequest{}, err
	}
	next.ID = current.ID
	m.requests[id] = next
	return next, nil
}
