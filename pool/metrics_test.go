package pool

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gogpu/framegraph/rhi"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	_, p := newTestPools(t, Config{}, WithMetrics(m))
	a, _ := p.Buffers.GetOrCreate(rhi.BufferDesc{Size: 16})
	p.Buffers.Release(a)
	b, _ := p.Buffers.GetOrCreate(rhi.BufferDesc{Size: 16})
	_, _ = p.Buffers.GetOrCreate(rhi.BufferDesc{Size: 16})
	_ = b

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"hits", m.hits.WithLabelValues(poolBuffers), 1},
		{"misses", m.misses.WithLabelValues(poolBuffers), 2},
		{"allocations", m.allocations.WithLabelValues(poolBuffers), 2},
		{"releases", m.releases.WithLabelValues(poolBuffers), 1},
		{"objects", m.objects.WithLabelValues(poolBuffers), 2},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	p.Invalidate()
	if got := testutil.ToFloat64(m.objects.WithLabelValues(poolBuffers)); got != 0 {
		t.Errorf("objects after Invalidate = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.destroyed.WithLabelValues(poolBuffers)); got != 2 {
		t.Errorf("destroyed = %v, want 2", got)
	}

	n, err := testutil.GatherAndCount(reg, "framegraph_pool_hits_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("hits_total series = %d, want 1", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.hit(poolBuffers)
	m.miss(poolBuffers)
	m.allocated(poolBuffers)
	m.released(poolBuffers, 3)
	m.destroy(poolBuffers, 3)
}
