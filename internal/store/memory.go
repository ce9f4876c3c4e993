package store

import (
	"context"
	"sync"
)

// MemoryStore keeps rows in memory. The error fields let tests simulate an
// unreachable backend.
type MemoryStore struct {
	mu      sync.Mutex
	headers []string
	rows    [][]string

	ReadErr   error
	WriteErr  error
	AppendErr error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith creates a store pre-filled with headers and rows
func NewMemoryStoreWith(headers []string, rows [][]string) *MemoryStore {
	m := &MemoryStore{headers: cloneRow(headers)}
	for _, r := range rows {
		m.rows = append(m.rows, cloneRow(r))
	}
	return m
}

// Read implements Store
func (m *MemoryStore) Read(ctx context.Context) ([][]string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, nil, m.ReadErr
	}
	rows := make([][]string, len(m.rows))
	for i, r := range m.rows {
		rows[i] = cloneRow(r)
	}
	return rows, cloneRow(m.headers), nil
}

// WriteHeaders implements Store
func (m *MemoryStore) WriteHeaders(ctx context.Context, headers []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.headers = cloneRow(headers)
	return nil
}

// Append implements Store
func (m *MemoryStore) Append(ctx context.Context, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	for _, r := range rows {
		m.rows = append(m.rows, cloneRow(r))
	}
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }

func cloneRow(r []string) []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r))
	copy(out, r)
	return out
}
