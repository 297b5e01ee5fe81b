// Package memory provides a process-local storage backend for tests and the
// local harness.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/storage"
)

// BackendName is the name used to register this backend.
const BackendName = "memory"

func init() {
	storage.Register(BackendName, Build)
}

// Build ignores cfg; the store starts empty.
func Build(ctx context.Context, cfg storage.Config, logger logging.ServiceLogger) (storage.Store, error) {
	return New(), nil
}

// Store keeps documents in insertion order.
type Store struct {
	mu    sync.RWMutex
	items map[string]map[string]any
	order []string
}

func New() *Store {
	return &Store{items: make(map[string]map[string]any)}
}

func (s *Store) Save(ctx context.Context, rec alert.Record) error {
	if err := ctx.Err(); err != nil {
		return storage.Wrap(BackendName, "save", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.items[rec.ID] = rec.Item()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (alert.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, storage.ErrNotFound)
	}
	return alert.RecordFromItem(maps.Clone(item)), nil
}

// List returns the newest records first.
func (s *Store) List(ctx context.Context, limit int) ([]alert.Record, error) {
	limit = storage.NormalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]alert.Record, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, alert.RecordFromItem(maps.Clone(s.items[s.order[i]])))
	}
	return out, nil
}

// Len is the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Close() error {
	return nil
}
