package resilience

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the resilience layer. A nil *Metrics is valid and
// records nothing, so tests and memory-only tools can skip the registry.
type Metrics struct {
	fetchesTotal   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	retriesTotal   *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	breakerRejects *prometheus.CounterVec
	coalescedTotal *prometheus.CounterVec
}

// NewMetrics registers the resilience collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		fetchesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anibridge_fetches_total",
				Help: "Resilient fetches by outcome (hit_memory, hit_persistent, fetched, failed, fallback).",
			},
			[]string{"provider", "method", "outcome"},
		),
		fetchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anibridge_fetch_duration_seconds",
				Help:    "End-to-end duration of resilient fetches.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "method"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anibridge_upstream_retries_total",
				Help: "Retry attempts against upstream providers.",
			},
			[]string{"op"},
		),
		breakerState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "anibridge_circuit_state",
				Help: "Circuit breaker position (0=closed, 1=open, 2=half-open).",
			},
			[]string{"op"},
		),
		breakerRejects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anibridge_circuit_rejections_total",
				Help: "Calls rejected by an open circuit.",
			},
			[]string{"op"},
		),
		coalescedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anibridge_coalesced_waits_total",
				Help: "Fetches that joined an already in-flight request.",
			},
			[]string{"provider", "method"},
		),
	}
}

func (m *Metrics) fetchObserved(provider, method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(provider, method, outcome).Inc()
	m.fetchDuration.WithLabelValues(provider, method).Observe(d.Seconds())
}

func (m *Metrics) retryObserved(op string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) breakerStateChanged(op string, s State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(op).Set(float64(s))
}

func (m *Metrics) breakerRejected(op string) {
	if m == nil {
		return
	}
	m.breakerRejects.WithLabelValues(op).Inc()
}

func (m *Metrics) coalescedWait(provider, method string) {
	if m == nil {
		return
	}
	m.coalescedTotal.WithLabelValues(provider, method).Inc()
}
