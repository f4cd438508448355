// Package gcsstore implements a chaindict.Store on a Google Cloud Storage
// bucket. Create-if-absent puts use the DoesNotExist write precondition.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"sort"

	"cloud.google.com/go/storage"
	"github.com/bsm/chaindict"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Store is a GCS-backed store.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	owned  bool
}

// Open creates a client and opens a store on bucket.
func Open(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: create client: %w", err)
	}
	return &Store{client: client, bucket: client.Bucket(bucket), owned: true}, nil
}

// New opens a store on bucket with an existing client. Close will not close
// the client.
func New(client *storage.Client, bucket string) *Store {
	return &Store{client: client, bucket: client.Bucket(bucket)}
}

// Get implements chaindict.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, chaindict.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// PutIfAbsent implements chaindict.Store.
func (s *Store) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CRC32C = crc32.Checksum(data, castagnoli)
	w.SendCRC32C = true

	if _, err := w.Write(data); err != nil {
		// cancelling aborts the upload
		cancel()
		_ = w.Close()
		return err
	}

	err := w.Close()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return chaindict.ErrAlreadyExists
	}
	return err
}

// List implements chaindict.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	query := &storage.Query{Prefix: prefix}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, err
	}

	var keys []string
	it := s.bucket.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		} else if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the client, if it was created by the store.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
