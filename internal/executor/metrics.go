package executor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
)

// Call outcomes recorded on the duration histogram
const (
	OutcomeOK        = "ok"
	OutcomePermanent = "permanent"
	OutcomeExhausted = "exhausted"
	OutcomeCanceled  = "canceled"
)

// Metrics holds the Prometheus collectors for admin calls.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	polls    *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyperfleet_admin_call_attempts_total",
			Help: "Attempts issued by admin calls, by method and resulting status code",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hyperfleet_admin_call_duration_seconds",
			Help:    "Wall time of logical admin calls including retries and backoff",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"method", "outcome"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyperfleet_admin_operation_polls_total",
			Help: "Long-running operation polls, by initiating method",
		}, []string{"method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hyperfleet_admin_async_calls_in_flight",
			Help: "Asynchronous admin calls currently holding a launcher slot",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.duration, m.polls, m.inFlight)
	}
	return m
}

func (m *Metrics) recordAttempt(method string, code codes.Code) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(method, code.String()).Inc()
}

func (m *Metrics) recordCall(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(method, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) recordPoll(method string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(method).Inc()
}

func (m *Metrics) addInFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}
