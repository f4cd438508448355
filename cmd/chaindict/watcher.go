package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bsm/chaindict"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// watcher prints the entries of new links.
type watcher struct {
	r   *chaindict.Resolver
	out io.Writer
	log *zap.Logger

	next uint32
	dict *chaindict.Dictionary // only advanced for links without a delta

	latest   prometheus.Gauge
	entries  prometheus.Counter
	failures prometheus.Counter
}

func newWatcher(r *chaindict.Resolver, out io.Writer, log *zap.Logger, reg prometheus.Registerer) *watcher {
	w := &watcher{
		r:    r,
		out:  out,
		log:  log,
		dict: chaindict.NewDictionary(),

		latest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chaindict",
			Subsystem: "watch",
			Name:      "latest_link",
			Help:      "Index of the latest link seen.",
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chaindict",
			Subsystem: "watch",
			Name:      "entries_total",
			Help:      "Entries printed.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chaindict",
			Subsystem: "watch",
			Name:      "poll_failures_total",
			Help:      "Failed polls.",
		}),
	}
	reg.MustRegister(w.latest, w.entries, w.failures)
	return w
}

// skipExisting moves past all links which exist already.
func (w *watcher) skipExisting(ctx context.Context) error {
	c, err := w.r.Chain(ctx)
	if err != nil {
		return err
	}
	if latest, ok := c.Latest(); ok {
		w.next = latest + 1
		w.latest.Set(float64(latest))
	}
	return nil
}

// run polls until ctx is cancelled. Retryable failures are logged, all others
// end the watch.
func (w *watcher) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.poll(ctx); errors.Is(err, context.Canceled) {
			return nil
		} else if chaindict.IsRetryable(err) {
			w.failures.Inc()
			w.log.Warn("poll failed", zap.Error(err))
		} else if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll prints the entries of all links added since the last call.
func (w *watcher) poll(ctx context.Context) error {
	c, err := w.r.Chain(ctx)
	if err != nil {
		return err
	}
	latest, ok := c.Latest()
	if !ok {
		return nil
	}

	for ; w.next <= latest; w.next++ {
		entries, err := w.linkEntries(ctx, c, w.next)
		if err != nil {
			return err
		}
		for _, ent := range entries {
			fmt.Fprintf(w.out, "%d\t%d\t%s\n", w.next, ent.ID, ent.Value)
		}
		w.entries.Add(float64(len(entries)))
		w.latest.Set(float64(w.next))
	}
	return nil
}

// linkEntries returns the entries introduced by a link. Links without a delta
// are read by advancing the dictionary.
func (w *watcher) linkEntries(ctx context.Context, c *chaindict.Chain, index uint32) ([]chaindict.Entry, error) {
	entries, err := w.r.DeltaOnly(ctx, c, index)
	if !errors.Is(err, chaindict.ErrDeltaNotAvailable) {
		return entries, err
	}

	info, err := w.r.LinkInfo(ctx, c, index)
	if err != nil {
		return nil, err
	}
	if cur, ok := w.dict.Link(); ok && cur >= index {
		w.dict = chaindict.NewDictionary()
	}
	d, err := w.r.Advance(ctx, c, w.dict, index)
	if err != nil {
		return nil, err
	}
	w.dict = d

	entries = entries[:0]
	w.dict.Range(info.BaseID, func(ent chaindict.Entry) bool {
		entries = append(entries, ent)
		return true
	})
	return entries, nil
}
