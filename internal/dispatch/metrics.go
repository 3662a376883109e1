package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Hook invocation results used as metric labels.
const (
	ResultOK      = "ok"
	ResultReject  = "reject"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// Metrics exposes Prometheus collectors that report dispatcher activity.
type Metrics struct {
	hookInvocations *prometheus.CounterVec
	hookDuration    *prometheus.HistogramVec
	passes          *prometheus.CounterVec
	passDuration    prometheus.Histogram
	inFlight        prometheus.Gauge
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests should supply a fresh registry. Collectors already registered under
// the same name are reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	hookInvocations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orbisdb",
			Subsystem: "dispatch",
			Name:      "hook_invocations_total",
			Help:      "Hook invocations by plugin, hook kind and result.",
		},
		[]string{"plugin", "hook", "result"},
	)
	hookDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orbisdb",
			Subsystem: "dispatch",
			Name:      "hook_duration_seconds",
			Help:      "Time spent in a single hook invocation.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"plugin", "hook"},
	)
	passes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orbisdb",
			Subsystem: "dispatch",
			Name:      "passes_total",
			Help:      "Stream processing passes by terminal state.",
		},
		[]string{"state"},
	)
	passDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "orbisdb",
			Subsystem: "dispatch",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a full stream processing pass.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "orbisdb",
			Subsystem: "dispatch",
			Name:      "passes_in_flight",
			Help:      "Number of passes currently being processed.",
		},
	)

	collectors := []prometheus.Collector{hookInvocations, hookDuration, passes, passDuration, inFlight}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch target := collector.(type) {
				case *prometheus.CounterVec:
					switch target { //nolint:exhaustive
					case hookInvocations:
						hookInvocations = already.ExistingCollector.(*prometheus.CounterVec)
					case passes:
						passes = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case *prometheus.HistogramVec:
					hookDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case prometheus.Histogram:
					passDuration = already.ExistingCollector.(prometheus.Histogram)
				case prometheus.Gauge:
					inFlight = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		hookInvocations: hookInvocations,
		hookDuration:    hookDuration,
		passes:          passes,
		passDuration:    passDuration,
		inFlight:        inFlight,
	}
}

// ObserveHook records one hook invocation.
func (m *Metrics) ObserveHook(pluginID, hook, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.hookInvocations.WithLabelValues(pluginID, hook, result).Inc()
	m.hookDuration.WithLabelValues(pluginID, hook).Observe(duration.Seconds())
}

// ObservePass records a pass that ended in state.
func (m *Metrics) ObservePass(state State, duration time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(string(state)).Inc()
	m.passDuration.Observe(duration.Seconds())
}

func (m *Metrics) passStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) passDone() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
