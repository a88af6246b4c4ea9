// This file contains an in-memory record store used in tests and available
// as a stand-in wherever a durable backend is not required.
package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory implementation of Client.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]Record
	modTimes map[string]time.Time

	// Now supplies record modification times; overridable in tests.
	Now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  map[string]Record{},
		modTimes: map[string]time.Time{},
		Now:      time.Now,
	}
}

// Get returns a copy of the record stored at key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// ForceReplace stores a copy of the record at key.
func (s *MemoryStore) ForceReplace(_ context.Context, key string, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = *record
	s.modTimes[key] = s.Now()
	return nil
}

// List returns info for all stored records, sorted by key.
func (s *MemoryStore) List(_ context.Context) ([]RecordInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]RecordInfo, 0, len(s.records))
	for key := range s.records {
		infos = append(infos, RecordInfo{Key: key, ModTime: s.modTimes[key]})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete removes the record at key if present.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	delete(s.modTimes, key)
	return nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
