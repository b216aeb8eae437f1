package memory

import (
	"context"
	"sort"
	"sync"

	"clinic/internal/kv"
)

// Store keeps values in process memory. It is the default backend for
// development and the backend used by tests.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	// FailWrites makes every Set fail with the given error, to exercise
	// persistence failure handling.
	FailWrites error
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Lister = (*Store)(nil)
)

func New() *Store {
	return &Store{values: make(map[string]string)}
}

// NewSeeded returns a store pre-populated with the given values.
func NewSeeded(values map[string]string) *Store {
	s := New()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.values[key] = value
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// SetFailWrites toggles write failures under the store lock.
func (s *Store) SetFailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailWrites = err
}
