package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bsm/chaindict"
	"github.com/bsm/chaindict/storage/badgerstore"
	"github.com/bsm/chaindict/storage/dirstore"
	"github.com/bsm/chaindict/storage/gcsstore"
	"github.com/bsm/chaindict/storage/leveldbstore"
	"github.com/bsm/chaindict/storage/memstore"
	"github.com/bsm/chaindict/storage/promstore"
	"github.com/bsm/chaindict/storage/snappystore"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore opens the configured backend. Metrics are registered with reg.
func openStore(ctx context.Context, cfg *config, reg prometheus.Registerer, logger *zap.Logger) (chaindict.Store, io.Closer, error) {
	var store chaindict.Store
	var closer io.Closer = nopCloser{}

	switch cfg.Backend {
	case "mem":
		store = memstore.New()
	case "dir":
		s, err := dirstore.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		store = s
	case "leveldb":
		s, err := leveldbstore.Open(cfg.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	case "badger":
		s, err := badgerstore.Open(badgerstore.Config{
			Path:       cfg.Path,
			SyncWrites: true,
			Logger:     logger.Named("badger"),
		})
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	case "gcs":
		if cfg.Bucket == "" {
			return nil, nil, fmt.Errorf("the gcs backend requires a bucket")
		}
		s, err := gcsstore.Open(ctx, cfg.Bucket)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.Snappy {
		store = snappystore.New(store)
	}

	instrumented, err := promstore.New(store, reg)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return instrumented, closer, nil
}
