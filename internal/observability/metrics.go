package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turn metrics
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebot_turns_total",
		Help: "Total number of pipeline turns by surface and outcome",
	}, []string{"surface", "status"})

	turnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicebot_turn_duration_seconds",
		Help:    "End-to-end pipeline turn duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"surface"})

	// Completion metrics
	completionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebot_completion_requests_total",
		Help: "Total number of remote completion requests",
	}, []string{"status"})

	completionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebot_completion_latency_seconds",
		Help:    "Remote completion latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebot_tts_requests_total",
		Help: "Total number of TTS requests",
	}, []string{"provider", "status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebot_tts_latency_seconds",
		Help:    "TTS processing latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Cache metrics
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebot_cache_lookups_total",
		Help: "Response cache lookups by cache and result",
	}, []string{"cache", "result"})

	// Synthesis pool metrics
	synthesisInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebot_synthesis_in_flight",
		Help: "Synthesis jobs currently executing on the worker pool",
	})

	synthesisQueueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebot_synthesis_queue_wait_seconds",
		Help:    "Time a synthesis job waited for a free worker",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebot_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicebot_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebot_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// TurnMetrics tracks timings for a single pipeline turn
type TurnMetrics struct {
	surface   string
	startTime time.Time
	mu        sync.Mutex
}

// NewTurnMetrics creates a metrics tracker for one turn on the given surface
func NewTurnMetrics(surface string) *TurnMetrics {
	return &TurnMetrics{
		surface:   surface,
		startTime: time.Now(),
	}
}

// RecordTurnEnd records the outcome of the whole turn
func (m *TurnMetrics) RecordTurnEnd(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turnsTotal.WithLabelValues(m.surface, status).Inc()
	turnDuration.WithLabelValues(m.surface).Observe(time.Since(m.startTime).Seconds())
}

// RecordCompletion records one remote completion call
func RecordCompletion(success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	completionRequests.WithLabelValues(status).Inc()
	completionLatency.Observe(latency.Seconds())
}

// RecordTTS records one provider synthesis call
func RecordTTS(provider string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	ttsRequests.WithLabelValues(provider, status).Inc()
	ttsLatency.Observe(latency.Seconds())
}

// RecordCacheLookup records a hit or miss on a named cache
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

// SynthesisStarted marks a pool job as executing after waiting the given time
func SynthesisStarted(waited time.Duration) {
	synthesisInFlight.Inc()
	synthesisQueueWait.Observe(waited.Seconds())
}

// SynthesisFinished marks a pool job as done
func SynthesisFinished() {
	synthesisInFlight.Dec()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
