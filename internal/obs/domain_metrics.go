package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ChargesRecomputeTotal counts synchronous charge recomputations by trigger.
	ChargesRecomputeTotal *prometheus.CounterVec
	// ChargesPersistFlushTotal counts debounced charge pushes by outcome.
	ChargesPersistFlushTotal *prometheus.CounterVec
	// ChargesPersistSupersededTotal counts in-flight pushes cancelled by a newer edit.
	ChargesPersistSupersededTotal prometheus.Counter
	// ChargesDriftTotal counts order views where recomputed totals disagreed with stored ones.
	ChargesDriftTotal prometheus.Counter
	// BackendRequestTotal counts outbound distributor backend calls by operation and outcome.
	BackendRequestTotal *prometheus.CounterVec
	// BackendRequestLatency records outbound backend call latency in milliseconds.
	BackendRequestLatency *prometheus.HistogramVec
	// BreakerState exposes the current circuit breaker state per target.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts breaker state transitions.
	BreakerTransitions *prometheus.CounterVec
	// BreakerOpenedTotal counts how often a breaker opened.
	BreakerOpenedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ChargesRecomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charges_recompute_total",
			Help:      "Count of charge recomputations by triggering view.",
		}, []string{"view"})
		ChargesPersistFlushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charges_persist_flush_total",
			Help:      "Count of debounced charge persistence flushes by result.",
		}, []string{"result"})
		ChargesPersistSupersededTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charges_persist_superseded_total",
			Help:      "Number of in-flight charge pushes cancelled by a newer edit burst.",
		})
		ChargesDriftTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charges_drift_total",
			Help:      "Order views whose recomputed totals disagreed with the stored ones.",
		})
		BackendRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_request_total",
			Help:      "Count of outbound distributor backend requests by outcome.",
		}, []string{"operation", "result"})
		BackendRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_ms",
			Help:      "Latency for outbound distributor backend requests in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"operation"})
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per target (0 closed, 1 open, 2 half-open).",
		}, []string{"target"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Count of circuit breaker state transitions.",
		}, []string{"target", "from", "to"})
		BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_opened_total",
			Help:      "Number of times a circuit breaker opened.",
		}, []string{"target"})

		collectors := []prometheus.Collector{
			ChargesRecomputeTotal,
			ChargesPersistFlushTotal,
			ChargesPersistSupersededTotal,
			ChargesDriftTotal,
			BackendRequestTotal,
			BackendRequestLatency,
			BreakerState,
			BreakerTransitions,
			BreakerOpenedTotal,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}
