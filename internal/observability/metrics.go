package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marswalk",
			Name:      "ticks_total",
			Help:      "Completed lockstep ticks.",
		},
	)
	barrierWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marswalk",
			Name:      "barrier_wait_seconds",
			Help:      "Time from broadcasting Move until every actor replied.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)
	trailCells = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marswalk",
			Name:      "trail_cells",
			Help:      "Distinct cells held in trail history.",
		},
	)
	clampsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marswalk",
			Name:      "bounds_clamps_total",
			Help:      "Moves pulled back inside the grid.",
		},
		[]string{"agent"},
	)
	unsupportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marswalk",
			Name:      "unsupported_agent_total",
			Help:      "Projection attempts for agent ids without a marker.",
		},
		[]string{"agent"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marswalk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marswalk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ticksTotal, barrierWait, trailCells, clampsTotal, unsupportedTotal, httpRequests, httpDuration)
	})
}

// SimMetrics feeds world runtime signals into the process registry.
type SimMetrics struct{}

func NewSimMetrics() SimMetrics {
	RegisterMetrics()
	return SimMetrics{}
}

func (SimMetrics) ObserveTick(_ uint64, barrier time.Duration, cells int) {
	ticksTotal.Inc()
	barrierWait.Observe(barrier.Seconds())
	trailCells.Set(float64(cells))
}

func (SimMetrics) ObserveClamp(id int) {
	clampsTotal.WithLabelValues(strconv.Itoa(id)).Inc()
}

func (SimMetrics) ObserveUnsupported(id int) {
	unsupportedTotal.WithLabelValues(strconv.Itoa(id)).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
