package store

import (
	"context"
	"sync"
)

// MemoryRepository keeps the slot in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	record *Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Save(_ context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := record
	m.record = &r
	return nil
}

func (m *MemoryRepository) Load(_ context.Context) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil, nil
	}
	if !m.record.Valid() {
		m.record = nil
		return nil, nil
	}
	r := *m.record
	return &r, nil
}

func (m *MemoryRepository) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
	return nil
}
