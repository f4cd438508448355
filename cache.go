package chaindict

import (
	"github.com/dgraph-io/ristretto/v2"
)

// fileCache is a read-through cache of decoded link files, keyed by storage
// key. A nil *fileCache caches nothing.
type fileCache struct {
	c *ristretto.Cache[string, *LinkFile]
}

func newFileCache(maxCost int64) (*fileCache, error) {
	if maxCost < 0 {
		return nil, nil
	}

	// assume ~4KiB per file, ristretto wants ~10x counters per item
	counters := maxCost / 4096 * 10
	if counters < 1000 {
		counters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, *LinkFile]{
		NumCounters: counters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &fileCache{c: c}, nil
}

func (c *fileCache) get(key string) (*LinkFile, bool) {
	if c == nil {
		return nil, false
	}
	return c.c.Get(key)
}

func (c *fileCache) set(key string, f *LinkFile) {
	if c == nil {
		return
	}
	c.c.Set(key, f, int64(f.Size()))
}

func (c *fileCache) close() {
	if c == nil {
		return
	}
	c.c.Close()
}
