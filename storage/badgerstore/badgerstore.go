// Package badgerstore implements a chaindict.Store on an embedded Badger
// database.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bsm/chaindict"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Config configures the database.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string
	// InMemory keeps all data in memory.
	InMemory bool
	// SyncWrites syncs every commit to disk.
	SyncWrites bool
	// Logger receives badger's internal log output. Discarded when nil.
	Logger *zap.Logger
}

// Store is a Badger-backed store.
type Store struct {
	db    *badger.DB
	owned bool
}

// Open opens a database with cfg.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path == "":
		return nil, errors.New("badgerstore: path is required for persistent databases")
	default:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db, owned: true}, nil
}

// New wraps an existing database. Close will not close db.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Get implements chaindict.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, chaindict.ErrNotFound
	}
	return data, err
}

// PutIfAbsent implements chaindict.Store. Concurrent puts of the same key
// conflict on commit, the loser retries and finds the key present.
func (s *Store) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get([]byte(key)); err == nil {
				return chaindict.ErrAlreadyExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return txn.Set([]byte(key), data)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// List implements chaindict.Store.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	return keys, err
}

// Close closes the database, if it was opened by the store.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
