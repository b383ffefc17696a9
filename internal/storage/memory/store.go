// Package memory provides the default in-process ScanStore.
package memory

import (
	"context"
	"sort"
	"sync"

	"dirscan/internal/storage"
)

// Store keeps scan records in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*storage.Record
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[string]*storage.Record)}
}

// Put inserts or replaces a record.
func (s *Store) Put(_ context.Context, rec *storage.Record) error {
	copied := *rec
	s.mu.Lock()
	s.records[rec.ID] = &copied
	s.mu.Unlock()
	return nil
}

// Get returns a record by id.
func (s *Store) Get(_ context.Context, id string) (*storage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	copied := *rec
	return &copied, true, nil
}

// List returns all records ordered by creation time, oldest first.
func (s *Store) List(_ context.Context) ([]*storage.Record, error) {
	s.mu.RLock()
	records := make([]*storage.Record, 0, len(s.records))
	for _, rec := range s.records {
		copied := *rec
		records = append(records, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes a record by id. Missing ids are not an error.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

// Close implements ScanStore.
func (s *Store) Close() error { return nil }
