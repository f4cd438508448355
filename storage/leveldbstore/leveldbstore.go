// Package leveldbstore implements a chaindict.Store on an embedded LevelDB
// database.
package leveldbstore

import (
	"context"
	"errors"
	"sync"

	"github.com/bsm/chaindict"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store is a LevelDB-backed store.
type Store struct {
	db    *leveldb.DB
	owned bool

	// goleveldb admits a single open transaction per DB
	mu sync.Mutex
}

// Open opens (or creates) a database at path.
func Open(path string, o *opt.Options) (*Store, error) {
	db, err := leveldb.OpenFile(path, o)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, owned: true}, nil
}

// OpenMem opens a transient in-memory database.
func OpenMem() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, owned: true}, nil
}

// New wraps an existing database. Close will not close db.
func New(db *leveldb.DB) *Store {
	return &Store{db: db}
}

// Get implements chaindict.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	data, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, chaindict.ErrNotFound
	}
	return data, err
}

// PutIfAbsent implements chaindict.Store.
func (s *Store) PutIfAbsent(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}
	defer tx.Discard()

	if ok, err := tx.Has([]byte(key), nil); err != nil {
		return err
	} else if ok {
		return chaindict.ErrAlreadyExists
	}

	if err := tx.Put([]byte(key), data, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// List implements chaindict.Store.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	return keys, it.Error()
}

// Close closes the database, if it was opened by the store.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
