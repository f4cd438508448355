// Package memstore implements an in-memory chaindict.Store, for tests and
// short-lived processes.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bsm/chaindict"
)

// Store is an in-memory store.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New returns an empty store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Get implements chaindict.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, chaindict.ErrNotFound
	}
	return append([]byte{}, data...), nil
}

// PutIfAbsent implements chaindict.Store.
func (s *Store) PutIfAbsent(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; ok {
		return chaindict.ErrAlreadyExists
	}
	s.objects[key] = append([]byte{}, data...)
	return nil
}

// List implements chaindict.Store.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
