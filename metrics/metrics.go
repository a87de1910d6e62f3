// Package metrics instruments edb mediums with Prometheus collectors.
package metrics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/e-XpertSolutions/go-edb/edb"
)

// Operation label values.
const (
	OpGet         = "get"
	OpSet         = "set"
	OpSetIfAbsent = "set_if_absent"
	OpRemove      = "remove"
	OpKeys        = "keys"
)

// Collectors holds the medium metrics. One Collectors can be shared by
// several instrumented mediums.
type Collectors struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewCollectors creates the medium collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edb_medium_operations_total",
			Help: "Medium operations by operation and result",
		}, []string{"op", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edb_medium_operation_duration_seconds",
			Help:    "Medium operation latency",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
	}
	for _, col := range []prometheus.Collector{c.Operations, c.Duration} {
		if err := reg.Register(col); err != nil {
			return nil, errors.Wrap(err, "cannot register medium collector")
		}
	}
	return c, nil
}

func (c *Collectors) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Operations.WithLabelValues(op, result).Inc()
	c.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Instrument wraps m so that every operation is counted and timed. The
// returned medium implements edb.AtomicMedium if and only if m does.
func (c *Collectors) Instrument(m edb.Medium) edb.Medium {
	im := &medium{next: m, c: c}
	if am, ok := m.(edb.AtomicMedium); ok {
		return &atomicMedium{medium: im, next: am}
	}
	return im
}

type medium struct {
	next edb.Medium
	c    *Collectors
}

func (m *medium) GetItem(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := m.next.GetItem(ctx, key)
	m.c.observe(OpGet, start, err)
	return v, ok, err
}

func (m *medium) SetItem(ctx context.Context, key, value string) error {
	start := time.Now()
	err := m.next.SetItem(ctx, key, value)
	m.c.observe(OpSet, start, err)
	return err
}

func (m *medium) RemoveItem(ctx context.Context, key string) error {
	start := time.Now()
	err := m.next.RemoveItem(ctx, key)
	m.c.observe(OpRemove, start, err)
	return err
}

func (m *medium) Keys(ctx context.Context) ([]string, error) {
	start := time.Now()
	keys, err := m.next.Keys(ctx)
	m.c.observe(OpKeys, start, err)
	return keys, err
}

type atomicMedium struct {
	*medium
	next edb.AtomicMedium
}

func (m *atomicMedium) SetItemIfAbsent(ctx context.Context, key, value string) (bool, error) {
	start := time.Now()
	stored, err := m.next.SetItemIfAbsent(ctx, key, value)
	m.medium.c.observe(OpSetIfAbsent, start, err)
	return stored, err
}
