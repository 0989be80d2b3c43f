// Package metrics exposes Prometheus collectors for verification traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

const namespace = "email_reachability"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	verdicts   *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
	duration   prometheus.Histogram
	admissions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Verification results by reachability verdict.",
		}, []string{"reachable"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "smtp_outcomes_total",
			Help:      "SMTP probe outcomes by error kind; empty means a clean answer.",
		}, []string{"error"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Time to verify one address.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		admissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Rate limiter admissions.",
		}, []string{"allowed"}),
	}
}

// ObserveResult records one finished verification.
func (m *Metrics) ObserveResult(res types.VerificationResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(string(res.Reachable)).Inc()
	if res.Syntax.Valid && res.MX.Found {
		m.outcomes.WithLabelValues(string(res.SMTP.Error)).Inc()
	}
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveAdmission(allowed bool) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}
