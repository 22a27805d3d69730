package sentiment

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Circuit breaker settings for external sentiment APIs
const (
	sourceMinRequests     = 3
	sourceFailureRatio    = 0.6
	sourceOpenTimeout     = 60 * time.Second
	sourceHalfOpenMaxReqs = 2
	sourceCountInterval   = 10 * time.Second
)

type breakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
}

var (
	globalBreakerMetrics *breakerMetrics
	breakerMetricsOnce   sync.Once
)

func initBreakerMetrics() {
	breakerMetricsOnce.Do(func() {
		globalBreakerMetrics = &breakerMetrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "sentiment_source_breaker_state",
					Help: "Sentiment source circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
				[]string{"source"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sentiment_source_requests_total",
					Help: "Total sentiment source calls through the circuit breaker",
				},
				[]string{"source", "result"},
			),
		}
	})
}

// breakerSet holds one circuit breaker per sentiment source. A flapping
// external API trips its own breaker without affecting the other sources.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	metrics  *breakerMetrics
}

func newBreakerSet() *breakerSet {
	initBreakerMetrics()
	return &breakerSet{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		metrics:  globalBreakerMetrics,
	}
}

func (b *breakerSet) forSource(source string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[source]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: sourceHalfOpenMaxReqs,
		Interval:    sourceCountInterval,
		Timeout:     sourceOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= sourceMinRequests && failureRatio >= sourceFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.updateState(name, to)
		},
	})
	b.breakers[source] = cb
	b.updateState(source, cb.State())
	return cb
}

func (b *breakerSet) updateState(source string, state gobreaker.State) {
	var value float64
	switch state {
	case gobreaker.StateClosed:
		value = 0
	case gobreaker.StateOpen:
		value = 1
	case gobreaker.StateHalfOpen:
		value = 2
	}
	b.metrics.state.WithLabelValues(source).Set(value)
}

func (b *breakerSet) record(source string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	b.metrics.requests.WithLabelValues(source, result).Inc()
}
