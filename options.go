package chaindict

import (
	"time"

	"go.uber.org/zap"
)

// Options define resolver and extender specific options.
type Options struct {
	// Logger receives debug and warning messages.
	// Default: zap.NewNop().
	Logger *zap.Logger

	// Concurrency is the maximum number of link files fetched in parallel.
	// Default: 8.
	Concurrency int

	// CacheSize is the maximum total encoded size in bytes of decoded link
	// files kept in memory. Link files are immutable so cached files never go
	// stale. A negative value disables caching.
	// Default: 64MiB.
	CacheSize int64

	// SnapshotPolicy decides whether newly extended links should also get a
	// snapshot file.
	// Default: NeverSnapshot.
	SnapshotPolicy SnapshotPolicy

	// MaxRetries is the number of times Extender.ExtendRetry retries after a
	// conflict or a backend failure. A negative value disables retries.
	// Default: 3.
	MaxRetries int

	// RetryBackoff is the initial delay between retries, doubled on each attempt.
	// Conflicts are retried immediately.
	// Default: 50ms.
	RetryBackoff time.Duration
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Logger == nil {
		oo.Logger = zap.NewNop()
	}
	if oo.Concurrency < 1 {
		oo.Concurrency = 8
	}
	if oo.CacheSize == 0 {
		oo.CacheSize = 64 << 20
	}
	if oo.SnapshotPolicy == nil {
		oo.SnapshotPolicy = NeverSnapshot
	}
	if oo.MaxRetries < 0 {
		oo.MaxRetries = 0
	} else if oo.MaxRetries == 0 {
		oo.MaxRetries = 3
	}
	if oo.RetryBackoff <= 0 {
		oo.RetryBackoff = 50 * time.Millisecond
	}

	return &oo
}
