package alert

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Hooks lets callers observe service outcomes without the service knowing
// about the metrics backend. Nil funcs are skipped.
type Hooks struct {
	OnCreate     func(wasteType WasteType)
	OnClaim      func(result string)
	OnTransition func(from, to Status)
	OnRejection  func(op, result string)
	OnReview     func(result string)
}

// Metrics holds Prometheus metrics for the alert lifecycle.
type Metrics struct {
	CreatedTotal     *prometheus.CounterVec
	ClaimsTotal      *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	RejectionsTotal  *prometheus.CounterVec
	ReviewsTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns alert metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haul_alerts_created_total",
			Help: "Alerts created by waste type.",
		}, []string{"waste_type"}),
		ClaimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haul_claims_total",
			Help: "Claim attempts by result (won, lost, not_found, forbidden, error).",
		}, []string{"result"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haul_transitions_total",
			Help: "Committed status transitions.",
		}, []string{"from", "to"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haul_rejections_total",
			Help: "Reject and unreject calls by result.",
		}, []string{"op", "result"}),
		ReviewsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haul_reviews_total",
			Help: "Review submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.CreatedTotal,
		m.ClaimsTotal,
		m.TransitionsTotal,
		m.RejectionsTotal,
		m.ReviewsTotal,
	)

	return m
}

// Hooks returns Hooks that increment the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnCreate: func(t WasteType) {
			m.CreatedTotal.WithLabelValues(string(t)).Inc()
		},
		OnClaim: func(result string) {
			m.ClaimsTotal.WithLabelValues(result).Inc()
		},
		OnTransition: func(from, to Status) {
			m.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
		},
		OnRejection: func(op, result string) {
			m.RejectionsTotal.WithLabelValues(op, result).Inc()
		},
		OnReview: func(result string) {
			m.ReviewsTotal.WithLabelValues(result).Inc()
		},
	}
}

// outcome buckets an error into a low-cardinality metric label.
func outcome(err error, success string) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
