package chaindict

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resolver reads chains stored in a namespace of a Store and materializes
// them into dictionaries. It is safe for concurrent use.
type Resolver struct {
	store     Store
	namespace string
	o         *Options
	log       *zap.Logger
	cache     *fileCache
}

// NewResolver creates a resolver for the chain stored under namespace.
func NewResolver(store Store, namespace string, o *Options) (*Resolver, error) {
	o = o.norm()

	cache, err := newFileCache(o.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		store:     store,
		namespace: namespace,
		o:         o,
		log:       o.Logger.With(zap.String("namespace", namespace)),
		cache:     cache,
	}, nil
}

// Namespace returns the namespace of the chain.
func (r *Resolver) Namespace() string { return r.namespace }

// Close releases the file cache.
func (r *Resolver) Close() error {
	r.cache.close()
	return nil
}

// Chain lists the namespace and returns the current chain metadata.
func (r *Resolver) Chain(ctx context.Context) (*Chain, error) {
	prefix := KeyPrefix(r.namespace)
	keys, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, wrapBackend("list", prefix, err)
	}
	return buildChain(r.namespace, keys)
}

// LinkInfo returns the entry range introduced by a link. It reads the link's
// delta file or, if the link has none, its snapshot.
func (r *Resolver) LinkInfo(ctx context.Context, c *Chain, index uint32) (LinkInfo, error) {
	l, ok := c.Link(index)
	if !ok {
		return LinkInfo{}, fmt.Errorf("%w: %d", ErrLinkNotFound, index)
	}

	kind := KindDelta
	if !l.HasDelta {
		kind = KindSnapshot
	}
	f, err := r.readFile(ctx, index, kind)
	if err != nil {
		return LinkInfo{}, err
	}
	return LinkInfo{Link: l, BaseID: f.BaseID, EntryCount: f.NewEntries()}, nil
}

// MaterializeLatest materializes the latest link of the chain. It returns an
// empty dictionary for an empty chain.
func (r *Resolver) MaterializeLatest(ctx context.Context, c *Chain) (*Dictionary, error) {
	latest, ok := c.Latest()
	if !ok {
		return NewDictionary(), nil
	}
	return r.Materialize(ctx, c, latest)
}

// Materialize reconstructs the dictionary formed by links 0 through target.
//
// The greatest snapshot at or before target seeds the dictionary and the
// deltas of all later links are replayed on top of it. Without a usable
// snapshot, all deltas are replayed from the start of the chain. A snapshot
// which cannot be decoded is skipped in favour of an earlier one.
func (r *Resolver) Materialize(ctx context.Context, c *Chain, target uint32) (*Dictionary, error) {
	if _, ok := c.Link(target); !ok {
		return nil, fmt.Errorf("%w: %d", ErrLinkNotFound, target)
	}

	var snapErr error
	for _, s := range c.snapshotsUpTo(target) {
		if s != target && !c.deltasCover(s+1, target) {
			continue
		}

		f, err := r.readFile(ctx, s, KindSnapshot)
		if Classify(err) == ClassFile {
			r.log.Warn("skipping unusable snapshot", zap.Uint32("link", s), zap.Error(err))
			if snapErr == nil {
				snapErr = err
			}
			continue
		} else if err != nil {
			return nil, err
		}

		d := newDictionary(int(f.EntryCount))
		if err := d.apply(f); err != nil {
			return nil, err
		}
		if s == target {
			return d, nil
		}

		r.log.Debug("replaying from snapshot", zap.Uint32("snapshot", s), zap.Uint32("target", target))
		if err := r.replay(ctx, c, d, s+1, target); err != nil {
			return nil, err
		}
		return d, nil
	}

	if !c.deltasCover(0, target) {
		if snapErr != nil {
			return nil, snapErr
		}
		return nil, fmt.Errorf("%w: no snapshot covers link %d", ErrMissingDelta, target)
	}

	r.log.Debug("replaying from genesis", zap.Uint32("target", target))
	d := NewDictionary()
	if err := r.replay(ctx, c, d, 0, target); err != nil {
		return nil, err
	}
	return d, nil
}

// Advance brings d forward to target, which must not be before the link d
// was materialized through. Only the missing deltas are replayed. Empty
// dictionaries are materialized like Materialize does, starting from the
// latest snapshot. If one of the missing deltas is not available or cannot
// be decoded, the dictionary is materialized afresh and a new Dictionary is
// returned. On failure, d is left unchanged.
func (r *Resolver) Advance(ctx context.Context, c *Chain, d *Dictionary, target uint32) (*Dictionary, error) {
	if _, ok := c.Link(target); !ok {
		return nil, fmt.Errorf("%w: %d", ErrLinkNotFound, target)
	}

	cur, ok := d.Link()
	if !ok {
		if d.Len() != 0 {
			return nil, fmt.Errorf("chaindict: cannot advance a dictionary with %d unlinked entries", d.Len())
		}
		return r.Materialize(ctx, c, target)
	}
	if cur > target {
		return nil, fmt.Errorf("chaindict: cannot rewind dictionary from link %d to %d", cur, target)
	} else if cur == target {
		return d, nil
	}
	from := cur + 1

	if !c.deltasCover(from, target) {
		r.log.Debug("deltas unavailable, re-materializing", zap.Uint32("from", from), zap.Uint32("target", target))
		return r.Materialize(ctx, c, target)
	}

	m := d.mark()
	err := r.replay(ctx, c, d, from, target)
	if err == nil {
		return d, nil
	}
	d.rollback(m)

	// a later snapshot may cover an unusable delta
	if snaps := c.snapshotsUpTo(target); Classify(err) == ClassFile && len(snaps) != 0 && snaps[0] >= from {
		r.log.Warn("skipping unusable delta, re-materializing", zap.Uint32("target", target), zap.Error(err))
		return r.Materialize(ctx, c, target)
	}
	return nil, err
}

// DeltaOnly returns exactly the entries introduced by a link, read from its
// delta file. Links which were written with a snapshot only fail with
// ErrDeltaNotAvailable. The returned values must not be modified.
func (r *Resolver) DeltaOnly(ctx context.Context, c *Chain, index uint32) ([]Entry, error) {
	l, ok := c.Link(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrLinkNotFound, index)
	}
	if !l.HasDelta {
		return nil, fmt.Errorf("%w: link %d", ErrDeltaNotAvailable, index)
	}

	f, err := r.readFile(ctx, index, KindDelta)
	if err != nil {
		return nil, err
	}
	return f.Entries, nil
}

// replay applies the deltas of links [from, to] to d, in order. Files are
// fetched concurrently.
func (r *Resolver) replay(ctx context.Context, c *Chain, d *Dictionary, from, to uint32) error {
	if from > to {
		return nil
	}
	if !c.deltasCover(from, to) {
		return fmt.Errorf("%w: links %d..%d", ErrMissingDelta, from, to)
	}

	files := make([]*LinkFile, int(to-from)+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.o.Concurrency)
	for i := range files {
		i := i
		g.Go(func() error {
			f, err := r.readFile(gctx, from+uint32(i), KindDelta)
			files[i] = f
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range files {
		if next := uint32(d.Len()); f.BaseID < next {
			return fmt.Errorf("%w: link %d starts at %d, %d entries already present", ErrDuplicateID, f.LinkIndex, f.BaseID, next)
		} else if f.BaseID > next {
			return fmt.Errorf("%w: link %d starts at %d, expected %d", ErrBrokenChain, f.LinkIndex, f.BaseID, next)
		}
		if err := d.apply(f); err != nil {
			return err
		}
	}
	return nil
}

// readFile fetches and decodes a link file, consulting the cache first.
func (r *Resolver) readFile(ctx context.Context, index uint32, kind Kind) (*LinkFile, error) {
	key := LinkKey(r.namespace, index, kind)
	if f, ok := r.cache.get(key); ok {
		return f, nil
	}

	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, wrapBackend("get", key, err)
	}

	f, err := DecodeLinkFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if f.LinkIndex != index || f.Kind != kind {
		return nil, fmt.Errorf("%w: %s holds the %s of link %d", ErrMalformedHeader, key, f.Kind, f.LinkIndex)
	}

	r.cache.set(key, f)
	return f, nil
}
