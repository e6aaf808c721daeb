package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

// Metrics holds the collectors shared by every InstrumentedStore of a process.
type Metrics struct {
	Ops       *prometheus.CounterVec
	Errors    *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Conflicts prometheus.Counter
}

// NewMetrics creates the store collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pyaz",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by kind.",
		}, []string{"op"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pyaz",
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Failed store operations by kind.",
		}, []string{"op"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pyaz",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pyaz",
			Subsystem: "store",
			Name:      "tx_conflicts_total",
			Help:      "Transactions aborted because a watched key changed.",
		}),
	}
	reg.MustRegister(m.Ops, m.Errors, m.Latency, m.Conflicts)
	return m
}

// InstrumentedStore wraps any kv.Store implementation with timing metrics.
// This pattern works for in-memory, Raft-backed and remote stores alike.
type InstrumentedStore struct {
	store   kv.Store
	metrics *Metrics
}

// Compile-time check to ensure InstrumentedStore implements kv.Store.
var _ kv.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps a store with instrumentation.
func NewInstrumentedStore(store kv.Store, metrics *Metrics) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: metrics,
	}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.Ops.WithLabelValues(op).Inc()
	s.metrics.Latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil || errors.Is(err, kv.ErrMemberNotFound) {
		return
	}
	if errors.Is(err, kv.ErrTxConflict) {
		s.metrics.Conflicts.Inc()
		return
	}
	s.metrics.Errors.WithLabelValues(op).Inc()
}

func (s *InstrumentedStore) ZAdd(ctx context.Context, key string, members ...kv.Member) (int64, error) {
	start := time.Now()
	n, err := s.store.ZAdd(ctx, key, members...)
	s.observe(string(kv.OpZAdd), start, err)
	return n, err
}

func (s *InstrumentedStore) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	start := time.Now()
	n, err := s.store.ZRem(ctx, key, members...)
	s.observe(string(kv.OpZRem), start, err)
	return n, err
}

func (s *InstrumentedStore) ZRank(ctx context.Context, key, member string) (int64, error) {
	start := time.Now()
	n, err := s.store.ZRank(ctx, key, member)
	s.observe(string(kv.OpZRank), start, err)
	return n, err
}

func (s *InstrumentedStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	t0 := time.Now()
	values, err := s.store.ZRange(ctx, key, start, stop)
	s.observe(string(kv.OpZRange), t0, err)
	return values, err
}

func (s *InstrumentedStore) LPush(ctx context.Context, key string, values ...string) (int64, error) {
	start := time.Now()
	n, err := s.store.LPush(ctx, key, values...)
	s.observe(string(kv.OpLPush), start, err)
	return n, err
}

func (s *InstrumentedStore) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	start := time.Now()
	n, err := s.store.LRem(ctx, key, count, value)
	s.observe(string(kv.OpLRem), start, err)
	return n, err
}

func (s *InstrumentedStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	t0 := time.Now()
	err := s.store.LTrim(ctx, key, start, stop)
	s.observe(string(kv.OpLTrim), t0, err)
	return err
}

func (s *InstrumentedStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	t0 := time.Now()
	values, err := s.store.LRange(ctx, key, start, stop)
	s.observe(string(kv.OpLRange), t0, err)
	return values, err
}

func (s *InstrumentedStore) Version(ctx context.Context, key string) (uint64, error) {
	start := time.Now()
	v, err := s.store.Version(ctx, key)
	s.observe("version", start, err)
	return v, err
}

func (s *InstrumentedStore) Exec(ctx context.Context, watch map[string]uint64, ops []kv.Op) ([]kv.Result, error) {
	start := time.Now()
	results, err := s.store.Exec(ctx, watch, ops)
	s.observe("exec", start, err)
	return results, err
}
