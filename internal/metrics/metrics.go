// Package metrics defines the Prometheus instruments for swap, ledger,
// review and notification activity.
//
// All recording methods are safe on a nil *Metrics, so components built
// without metrics (tests, one-shot CLI commands) need no special casing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "greenswap"

// Metrics holds all instruments. Build it once per registry with New.
type Metrics struct {
	// SwapsCreatedTotal counts swaps proposed.
	SwapsCreatedTotal prometheus.Counter

	// TransitionsTotal counts transition attempts.
	// Labels: to (target status), result (ok or error class)
	TransitionsTotal *prometheus.CounterVec

	// TransitionSeconds measures transition latency including side effects.
	TransitionSeconds prometheus.Histogram

	// CreditedTotal accumulates ledger credit.
	// Labels: kind (co2_saved, waste_reduced)
	CreditedTotal *prometheus.CounterVec

	// SideEffectRetriesTotal counts post-commit retries of derived state.
	// Labels: op (mark_unavailable, record_offer, clear_offer)
	SideEffectRetriesTotal *prometheus.CounterVec

	// ReviewsTotal counts review writes.
	// Labels: op (submit, update), result
	ReviewsTotal *prometheus.CounterVec

	// NotificationsTotal counts notification outcomes.
	// Labels: result (sent, failed, dropped)
	NotificationsTotal *prometheus.CounterVec
}

// New creates and registers all instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SwapsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "created_total",
			Help:      "Total swaps proposed",
		}),
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "transitions_total",
			Help:      "Swap transition attempts by target status and result",
		}, []string{"to", "result"}),
		TransitionSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "transition_seconds",
			Help:      "Swap transition latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		CreditedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credited_kg_total",
			Help:      "Impact credit applied to user ledgers in kilograms",
		}, []string{"kind"}),
		SideEffectRetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "side_effect_retries_total",
			Help:      "Retries of post-commit derived-state updates",
		}, []string{"op"}),
		ReviewsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "writes_total",
			Help:      "Review submissions and updates by result",
		}, []string{"op", "result"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Notification events by delivery result",
		}, []string{"result"}),
	}
}

func (m *Metrics) SwapCreated() {
	if m == nil {
		return
	}
	m.SwapsCreatedTotal.Inc()
}

func (m *Metrics) Transition(to, result string, seconds float64) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(to, result).Inc()
	m.TransitionSeconds.Observe(seconds)
}

func (m *Metrics) Credited(co2, waste float64) {
	if m == nil {
		return
	}
	m.CreditedTotal.WithLabelValues("co2_saved").Add(co2)
	m.CreditedTotal.WithLabelValues("waste_reduced").Add(waste)
}

func (m *Metrics) SideEffectRetry(op string) {
	if m == nil {
		return
	}
	m.SideEffectRetriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) Review(op, result string) {
	if m == nil {
		return
	}
	m.ReviewsTotal.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}
