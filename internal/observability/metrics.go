package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	AuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lighthouse_audits_total",
		Help: "Total number of Lighthouse runs, by runner backend and outcome.",
	}, []string{"backend", "status"})

	AuditDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lighthouse_audit_seconds",
		Help:    "Wall time of a single successful Lighthouse run.",
		Buckets: []float64{5, 10, 20, 30, 60, 120, 300},
	}, []string{"backend"})

	ComparisonsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lighthouse_comparisons_total",
		Help: "Total number of branch comparisons produced.",
	})

	CheckoutFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lighthouse_checkout_failures_total",
		Help: "Total number of branch checkouts that aborted a request.",
	})
)
