// Package promstore wraps a chaindict.Store and records Prometheus metrics
// for every operation.
package promstore

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/chaindict"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeExists   = "exists"
	OutcomeError    = "error"
)

// Store instruments a store.
type Store struct {
	next chaindict.Store

	ops      *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New wraps next and registers its collectors with reg. Collectors which are
// already registered, by another Store for example, are shared.
func New(next chaindict.Store, reg prometheus.Registerer) (*Store, error) {
	s := &Store{next: next}

	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chaindict",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Store operations, by operation and outcome.",
	}, []string{"op", "outcome"})
	if err := register(reg, ops, &s.ops); err != nil {
		return nil, err
	}

	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chaindict",
		Subsystem: "store",
		Name:      "bytes_total",
		Help:      "Object bytes read and written.",
	}, []string{"op"})
	if err := register(reg, bytes, &s.bytes); err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chaindict",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Store operation latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"op"})
	if err := register(reg, duration, &s.duration); err != nil {
		return nil, err
	}

	return s, nil
}

// Get implements chaindict.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.next.Get(ctx, key)
	s.observe("get", start, err)
	s.bytes.WithLabelValues("get").Add(float64(len(data)))
	return data, err
}

// PutIfAbsent implements chaindict.Store.
func (s *Store) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.next.PutIfAbsent(ctx, key, data)
	s.observe("put", start, err)
	if err == nil {
		s.bytes.WithLabelValues("put").Add(float64(len(data)))
	}
	return err
}

// List implements chaindict.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.next.List(ctx, prefix)
	s.observe("list", start, err)
	return keys, err
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.ops.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, chaindict.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, chaindict.ErrAlreadyExists):
		return OutcomeExists
	default:
		return OutcomeError
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, dst *T) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return err
		}
		c = existing
	}
	*dst = c
	return nil
}
