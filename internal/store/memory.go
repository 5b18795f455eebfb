package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"life.tape/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	state   map[string]*models.StateRecord
	entries map[string]*models.Entry
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:   make(map[string]*models.StateRecord),
		entries: make(map[string]*models.Entry),
	}
}

func (s *MemoryStore) GetState(ctx context.Context, key string) (*models.StateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.state[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) UpsertState(ctx context.Context, rec *models.StateRecord) error {
	if rec.Key == "" {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.state[rec.Key] = &cp
	return nil
}

func (s *MemoryStore) DeleteState(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.state, key)
	return nil
}

func (s *MemoryStore) ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.Match(e) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sortEntries(result, filter.Ascending)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) InsertEntry(ctx context.Context, entry *models.Entry) error {
	if entry.ID == "" {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; ok {
		return ErrConflict
	}
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateEntry(ctx context.Context, id string, patch models.EntryPatch) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(e)
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// Close holds nothing to release. The maps stay usable for requests still
// in flight during shutdown.
func (s *MemoryStore) Close() error {
	return nil
}

// sortEntries orders by createdAt, newest first unless ascending. Ties are
// broken by id so listings are stable.
func sortEntries(entries []*models.Entry, ascending bool) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.CreatedAt == b.CreatedAt {
			return a.ID < b.ID
		}
		if ascending {
			return a.CreatedAt < b.CreatedAt
		}
		return a.CreatedAt > b.CreatedAt
	})
}
