package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. Useful for tests and short-lived
// tools; records do not survive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record)}
}

// Find implements Store.
func (s *MemoryStore) Find(ctx context.Context, athleteID int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[athleteID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := rec
	return &copied, nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.AthleteID]; ok {
		return ErrAlreadyExists
	}
	s.records[rec.AthleteID] = *rec
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, athleteID int64, changes Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[athleteID]
	if !ok {
		return ErrNotFound
	}
	changes.apply(&rec)
	s.records[athleteID] = rec
	return nil
}
