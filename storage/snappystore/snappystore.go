// Package snappystore wraps a chaindict.Store and compresses stored objects
// with snappy.
package snappystore

import (
	"context"
	"fmt"

	"github.com/bsm/chaindict"
	"github.com/golang/snappy"
)

// Store compresses objects on put and decompresses them on get. Keys are
// passed through unchanged.
type Store struct {
	chaindict.Store
}

// New wraps s.
func New(s chaindict.Store) *Store {
	return &Store{Store: s}
}

// Get implements chaindict.Store. Objects which fail to decompress are
// reported as ErrCorruptFile.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	plain, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", chaindict.ErrCorruptFile, key, err)
	}
	return plain, nil
}

// PutIfAbsent implements chaindict.Store.
func (s *Store) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	return s.Store.PutIfAbsent(ctx, key, snappy.Encode(nil, data))
}
