package route

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/haul/internal/alert"
)

// Hooks observes optimizer outcomes. Nil funcs are skipped.
type Hooks struct {
	OnOptimize   func(result string)
	OnGroup      func(size int)
	OnRouterCall func(result string, dur time.Duration)
}

// Metrics holds Prometheus metrics for route optimisation.
type Metrics struct {
	OptimizationsTotal *prometheus.CounterVec
	GroupSize          prometheus.Histogram
	RouterCallDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns route metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OptimizationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haul_route_optimizations_total",
			Help: "Route optimisation requests by result.",
		}, []string{"result"}),
		GroupSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "haul_route_group_size",
			Help:    "Number of stops per time-slot group.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 25, 50},
		}),
		RouterCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "haul_routing_call_duration_seconds",
			Help:    "Latency of routing provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
	}

	reg.MustRegister(m.OptimizationsTotal, m.GroupSize, m.RouterCallDuration)
	return m
}

// Hooks returns Hooks that record into m.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnOptimize: func(result string) {
			m.OptimizationsTotal.WithLabelValues(result).Inc()
		},
		OnGroup: func(size int) {
			m.GroupSize.Observe(float64(size))
		},
		OnRouterCall: func(result string, dur time.Duration) {
			m.RouterCallDuration.WithLabelValues(result).Observe(dur.Seconds())
		},
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, alert.ErrValidation):
		return "invalid"
	case errors.Is(err, alert.ErrNotFound):
		return "not_found"
	case errors.Is(err, alert.ErrForbidden):
		return "forbidden"
	case errors.Is(err, alert.ErrUpstream):
		return "upstream"
	default:
		return "error"
	}
}
