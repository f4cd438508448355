package chaindict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Extension is the outcome of extending a chain.
type Extension struct {
	// Link is the index of the link created. Only set if Created is true.
	Link uint32
	// Created is false if none of the values were new, in which case no link
	// was created.
	Created bool
	// Snapshot is true if a snapshot file was written for the link.
	Snapshot bool
	// BaseID is the id assigned to the first accepted value.
	BaseID uint32
	// Accepted holds the new entries, in id order.
	Accepted []Entry
}

// Extender appends links to a chain. It memoizes the materialized dictionary
// of the latest link it has seen and only replays newer deltas on each call.
//
// An Extender is safe for concurrent use. Multiple extenders, in the same or
// different processes, may extend the same chain: each link index can be
// claimed by one writer only, the others fail with ErrConflict.
type Extender struct {
	r   *Resolver
	log *zap.Logger

	mu   sync.Mutex
	dict *Dictionary
}

// NewExtender creates an extender which uses r to read the chain and writes
// to r's store and namespace.
func NewExtender(r *Resolver) *Extender {
	return &Extender{
		r:   r,
		log: r.log,
	}
}

// Extend appends a new link containing all values which are not yet part of
// the chain. Values repeated within the batch are accepted once, at their
// first occurrence. If no value is new, no link is created.
//
// The delta file is committed with a create-if-absent put, which fails with
// ErrConflict if another writer claimed the same link index first. Refresh
// and retry in that case (see ExtendRetry). Retrying after any error is safe,
// values which made it into the chain are simply recognised as known.
//
// A snapshot is also written if writeSnapshot is true or the snapshot policy
// asks for one. If the snapshot cannot be written after the link was
// committed, both the Extension and the error are returned.
func (e *Extender) Extend(ctx context.Context, values [][]byte, writeSnapshot bool) (*Extension, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.r.Chain(ctx)
	if err != nil {
		return nil, err
	}
	dict, err := e.view(ctx, c)
	if err != nil {
		return nil, err
	}

	base := uint32(dict.Len())
	accepted, err := acceptValues(dict, values)
	if err != nil {
		return nil, err
	}
	if len(accepted) == 0 {
		return &Extension{BaseID: base}, nil
	}

	next := uint32(0)
	if latest, ok := c.Latest(); ok {
		if latest == math.MaxUint32 {
			return nil, fmt.Errorf("%w: no link index left", ErrTooManyEntries)
		}
		next = latest + 1
	}

	data, err := EncodeLinkFile(KindDelta, next, base, accepted)
	if err != nil {
		return nil, err
	}

	// The delta is the link's claim, it must never overwrite an existing one.
	key := LinkKey(e.r.namespace, next, KindDelta)
	if err := e.r.store.PutIfAbsent(ctx, key, data); errors.Is(err, ErrAlreadyExists) {
		e.log.Debug("link claimed by another writer", zap.Uint32("link", next))
		return nil, fmt.Errorf("%w: link %d", ErrConflict, next)
	} else if err != nil {
		return nil, wrapBackend("put", key, err)
	}

	for _, ent := range accepted {
		if err := dict.insert(ent); err != nil {
			e.dict = nil
			return nil, err
		}
	}
	dict.link, dict.linked = next, true

	ext := &Extension{
		Link:     next,
		Created:  true,
		BaseID:   base,
		Accepted: accepted,
	}
	e.log.Debug("link committed",
		zap.Uint32("link", next),
		zap.Uint32("base_id", base),
		zap.Int("entries", len(accepted)))

	if writeSnapshot || e.r.o.SnapshotPolicy.ShouldSnapshot(next, c.linksSinceSnapshot(next)) {
		if err := e.writeSnapshot(ctx, dict, next, base); err != nil {
			return ext, err
		}
		ext.Snapshot = true
	}
	return ext, nil
}

// ExtendRetry calls Extend, retrying conflicts and backend failures up to
// Options.MaxRetries times.
//
// A put which failed may still have been stored by the backend. The retry
// then finds all values known and returns an Extension with Created set to
// false. Look up the ids of such values in a materialized dictionary.
func (e *Extender) ExtendRetry(ctx context.Context, values [][]byte, writeSnapshot bool) (*Extension, error) {
	backoff := e.r.o.RetryBackoff

	for attempt := 0; ; attempt++ {
		ext, err := e.Extend(ctx, values, writeSnapshot)
		if err == nil || !IsRetryable(err) || attempt >= e.r.o.MaxRetries || ctx.Err() != nil {
			return ext, err
		}
		if ext != nil && ext.Created {
			// committed, only the snapshot failed
			return ext, err
		}

		e.log.Debug("retrying extension", zap.Int("attempt", attempt+1), zap.Error(err))
		if errors.Is(err, ErrConflict) {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// Checkpoint writes the snapshot file of an existing link, if it has none.
// Snapshot content is fully determined by the chain, so concurrent
// checkpoints of the same link are harmless.
func (e *Extender) Checkpoint(ctx context.Context, index uint32) error {
	c, err := e.r.Chain(ctx)
	if err != nil {
		return err
	}
	l, ok := c.Link(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrLinkNotFound, index)
	}
	if l.HasSnapshot {
		return nil
	}

	info, err := e.r.LinkInfo(ctx, c, index)
	if err != nil {
		return err
	}
	dict, err := e.r.Materialize(ctx, c, index)
	if err != nil {
		return err
	}
	return e.writeSnapshot(ctx, dict, index, info.BaseID)
}

// Reset drops the memoized dictionary.
func (e *Extender) Reset() {
	e.mu.Lock()
	e.dict = nil
	e.mu.Unlock()
}

// view returns the memoized dictionary, advanced to the latest link of c.
func (e *Extender) view(ctx context.Context, c *Chain) (*Dictionary, error) {
	latest, ok := c.Latest()
	if !ok {
		if e.dict != nil && e.dict.Len() != 0 {
			e.dict = nil
			return nil, fmt.Errorf("%w: %q is empty, but was not before", ErrBrokenChain, c.Namespace())
		}
		e.dict = NewDictionary()
		return e.dict, nil
	}

	if e.dict == nil {
		e.dict = NewDictionary()
	}
	dict, err := e.r.Advance(ctx, c, e.dict, latest)
	if err != nil {
		if !IsRetryable(err) {
			e.dict = nil
		}
		return nil, err
	}
	e.dict = dict
	return dict, nil
}

func (e *Extender) writeSnapshot(ctx context.Context, dict *Dictionary, index, baseID uint32) error {
	w := NewLinkWriter(KindSnapshot, index, baseID)

	var err error
	dict.Range(0, func(ent Entry) bool {
		err = w.Append(ent.Value, ent.ID)
		return err == nil
	})
	if err != nil {
		return err
	}
	data, err := w.Finish()
	if err != nil {
		return err
	}

	key := LinkKey(e.r.namespace, index, KindSnapshot)
	if err := e.r.store.PutIfAbsent(ctx, key, data); errors.Is(err, ErrAlreadyExists) {
		e.log.Debug("snapshot already exists", zap.Uint32("link", index))
		return nil
	} else if err != nil {
		return wrapBackend("put", key, err)
	}

	e.log.Debug("snapshot written", zap.Uint32("link", index), zap.Int("entries", dict.Len()))
	return nil
}

// acceptValues filters values already present in dict or earlier in the
// batch and assigns ids to the remaining ones.
func acceptValues(dict *Dictionary, values [][]byte) ([]Entry, error) {
	next := uint64(dict.Len())
	seen := make(map[string]struct{}, len(values))

	var accepted []Entry
	for _, v := range values {
		if _, ok := dict.ID(v); ok {
			continue
		}
		if _, ok := seen[string(v)]; ok {
			continue
		}
		if next >= MaxEntries {
			return nil, ErrTooManyEntries
		}

		value := append(make([]byte, 0, len(v)), v...)
		seen[string(value)] = struct{}{}
		accepted = append(accepted, Entry{Value: value, ID: uint32(next)})
		next++
	}
	return accepted, nil
}
