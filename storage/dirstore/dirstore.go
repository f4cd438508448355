// Package dirstore implements a chaindict.Store on a local directory. Keys
// map to file paths below the root, with "/" as the separator.
package dirstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bsm/chaindict"
)

const tempPrefix = ".tmp-"

// Store is a directory-backed store.
type Store struct {
	root string
}

// New opens a store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: dir}, nil
}

// Root returns the root directory.
func (s *Store) Root() string { return s.root }

// Get implements chaindict.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	name, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, chaindict.ErrNotFound
	}
	return data, err
}

// PutIfAbsent implements chaindict.Store. Data is written to a temporary file
// first, which is then hard-linked to its final name. Linking fails if the
// name is taken, even across processes.
func (s *Store) PutIfAbsent(_ context.Context, key string, data []byte) error {
	name, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Link(tmp.Name(), name); errors.Is(err, fs.ErrExist) {
		return chaindict.ErrAlreadyExists
	} else if err != nil {
		return err
	}
	return nil
}

// List implements chaindict.Store.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	// walk the deepest directory the prefix fully names
	base := path.Dir(prefix)
	if strings.HasSuffix(prefix, "/") {
		base = strings.TrimSuffix(prefix, "/")
	}
	if base == "." {
		base = ""
	}
	start, err := s.path(base)
	if err != nil {
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(start, func(name string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		} else if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(s.root, name)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" {
		return s.root, nil
	}
	if strings.HasPrefix(key, "/") || path.Clean(key) != strings.TrimSuffix(key, "/") {
		return "", fmt.Errorf("dirstore: invalid key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("dirstore: invalid key %q", key)
		}
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
