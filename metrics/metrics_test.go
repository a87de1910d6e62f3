package metrics

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/e-XpertSolutions/go-edb/edb"
)

type failingMedium struct{ edb.Medium }

func (failingMedium) SetItem(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestInstrumentCountsOperations(t *testing.T) {
	ctx := context.Background()
	c, err := NewCollectors(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollectors: %v", err)
	}
	m := c.Instrument(edb.NewMemoryMedium())

	_ = m.SetItem(ctx, "a", "1")
	_, _, _ = m.GetItem(ctx, "a")
	_, _, _ = m.GetItem(ctx, "b")
	_, _ = m.Keys(ctx)
	_ = m.RemoveItem(ctx, "a")

	tests := []struct {
		op   string
		want float64
	}{
		{OpSet, 1},
		{OpGet, 2},
		{OpKeys, 1},
		{OpRemove, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(c.Operations.WithLabelValues(tt.op, "ok")); got != tt.want {
			t.Errorf("%s ok = %v, want %v", tt.op, got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(c.Duration); n != 4 {
		t.Errorf("duration series = %d, want 4", n)
	}
}

func TestInstrumentPreservesAtomic(t *testing.T) {
	c, err := NewCollectors(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollectors: %v", err)
	}

	am, ok := c.Instrument(edb.NewMemoryMedium()).(edb.AtomicMedium)
	if !ok {
		t.Fatal("instrumented MemoryMedium is not atomic")
	}
	if stored, err := am.SetItemIfAbsent(context.Background(), "k", "v"); !stored || err != nil {
		t.Fatalf("SetItemIfAbsent = %v, %v", stored, err)
	}
	if got := testutil.ToFloat64(c.Operations.WithLabelValues(OpSetIfAbsent, "ok")); got != 1 {
		t.Errorf("set_if_absent ok = %v, want 1", got)
	}

	if _, ok := c.Instrument(failingMedium{edb.NewMemoryMedium()}).(edb.AtomicMedium); ok {
		t.Fatal("instrumented plain medium claims to be atomic")
	}
}

func TestInstrumentCountsErrors(t *testing.T) {
	c, err := NewCollectors(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollectors: %v", err)
	}
	m := c.Instrument(failingMedium{edb.NewMemoryMedium()})
	if err := m.SetItem(context.Background(), "k", "v"); err == nil {
		t.Fatal("SetItem succeeded")
	}
	if got := testutil.ToFloat64(c.Operations.WithLabelValues(OpSet, "error")); got != 1 {
		t.Errorf("set error = %v, want 1", got)
	}
}

func TestInstrumentedStore(t *testing.T) {
	ctx := context.Background()
	c, err := NewCollectors(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollectors: %v", err)
	}
	s, err := edb.Open(ctx, c.Instrument(edb.NewMemoryMedium()), "s1", "salt1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.Put(ctx, "todos", "", []byte(`{}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := testutil.ToFloat64(c.Operations.WithLabelValues(OpSetIfAbsent, "ok")); got != 1 {
		t.Errorf("set_if_absent ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Operations.WithLabelValues(OpGet, "ok")); got != 0 {
		t.Errorf("get ok = %v, want 0 with an atomic medium", got)
	}
}

func TestNewCollectorsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollectors(reg); err != nil {
		t.Fatalf("NewCollectors: %v", err)
	}
	if _, err := NewCollectors(reg); err == nil {
		t.Fatal("second registration succeeded")
	}
}
