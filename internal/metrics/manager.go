package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "relax"
)

type Manager struct {
	// counters
	CounterSessionsStarted   *prometheus.CounterVec
	CounterSessionsCompleted *prometheus.CounterVec
	CounterPhaseTransitions  *prometheus.CounterVec
	CounterFramesEmitted     prometheus.Counter
	CounterFramesDropped     prometheus.Counter
	CounterRequests          *prometheus.CounterVec
	CounterRequestPanics     prometheus.Counter

	// gauges
	GaugeActiveSessions prometheus.Gauge

	// histograms
	HistSessionDuration prometheus.Histogram
	HistRequestDuration prometheus.Histogram
}

// NewDetachedManager returns a manager whose collectors are registered on a
// private registry and never exposed
func NewDetachedManager() *Manager {
	return NewManager("relax", prometheus.NewRegistry())
}

func NewTestManager() *Manager {
	return NewManager("test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("test", reg), reg
}

func NewManager(subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterSessionsStarted := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "sessions_started_total",
		Help:      "The total number of started breathing sessions",
	}, []string{"exercise"})
	counterSessionsCompleted := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "sessions_completed_total",
		Help:      "The total number of sessions whose countdown ran out",
	}, []string{"exercise"})
	counterPhaseTransitions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "phase_transitions_total",
		Help:      "The total number of entered phases",
	}, []string{"exercise", "phase"})
	counterFramesEmitted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "frames_emitted_total",
		Help:      "The total number of frames produced by the tick loop",
	})
	counterFramesDropped := factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "frames_dropped_total",
		Help:      "Frames dropped because a consumer was not keeping up",
	})
	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "http_requests_total",
		Help:      "The total number of incoming requests",
	}, []string{"route", "method", "status"})
	counterRequestPanics := factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "http_request_panics_total",
		Help:      "Requests whose handler panicked",
	})

	gaugeActiveSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Sessions currently hosted by the controller",
	})

	histSessionDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "session_elapsed_seconds",
		Help:      "Counted seconds of finished sessions",
		Buckets:   []float64{30, 60, 120, 180, 300, 600, 900, 1800, 3600},
	})
	histRequestDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "Total duration of requests in seconds",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
	})

	return &Manager{
		CounterSessionsStarted:   counterSessionsStarted,
		CounterSessionsCompleted: counterSessionsCompleted,
		CounterPhaseTransitions:  counterPhaseTransitions,
		CounterFramesEmitted:     counterFramesEmitted,
		CounterFramesDropped:     counterFramesDropped,
		CounterRequests:          counterRequests,
		CounterRequestPanics:     counterRequestPanics,
		GaugeActiveSessions:      gaugeActiveSessions,
		HistSessionDuration:      histSessionDuration,
		HistRequestDuration:      histRequestDuration,
	}
}
