package pool

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "framegraph"
	subsystem = "pool"
)

// Pool names used as the "pool" label.
const (
	poolBuffers      = "buffers"
	poolTextures     = "textures"
	poolBufferViews  = "buffer_views"
	poolTextureViews = "texture_views"
	poolBindGroups   = "bind_groups"
	poolLayouts      = "bind_group_layouts"
	poolPipelines    = "compute_pipelines"
)

// Metrics holds prometheus metrics for pools and caches. A nil *Metrics
// records nothing.
type Metrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	allocations *prometheus.CounterVec
	releases    *prometheus.CounterVec
	destroyed   *prometheus.CounterVec
	objects     *prometheus.GaugeVec
}

// NewMetrics creates unregistered pool metrics.
func NewMetrics() *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name,
				Help:      help,
			},
			[]string{"pool"},
		)
	}
	return &Metrics{
		hits:        counter("hits_total", "Requests served by an existing pooled or cached object."),
		misses:      counter("misses_total", "Requests that needed a new device object."),
		allocations: counter("allocations_total", "Device objects created by the pool."),
		releases:    counter("releases_total", "Objects returned to a free list."),
		destroyed:   counter("destroyed_total", "Device objects destroyed by eviction or invalidation."),
		objects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "objects",
				Help:      "Device objects currently owned by the pool.",
			},
			[]string{"pool"},
		),
	}
}

// MustRegister registers the metrics with the given Prometheus registry.
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(m.hits, m.misses, m.allocations, m.releases, m.destroyed, m.objects)
}

func (m *Metrics) hit(pool string) {
	if m != nil {
		m.hits.WithLabelValues(pool).Inc()
	}
}

func (m *Metrics) miss(pool string) {
	if m != nil {
		m.misses.WithLabelValues(pool).Inc()
	}
}

func (m *Metrics) allocated(pool string) {
	if m != nil {
		m.allocations.WithLabelValues(pool).Inc()
		m.objects.WithLabelValues(pool).Inc()
	}
}

func (m *Metrics) released(pool string, n int) {
	if m != nil && n > 0 {
		m.releases.WithLabelValues(pool).Add(float64(n))
	}
}

func (m *Metrics) destroy(pool string, n int) {
	if m != nil && n > 0 {
		m.destroyed.WithLabelValues(pool).Add(float64(n))
		m.objects.WithLabelValues(pool).Sub(float64(n))
	}
}
