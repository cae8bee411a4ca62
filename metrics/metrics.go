/*
Package metrics exposes engine measurements as Prometheus collectors.

PURPOSE:
  Implements compensation.Recorder so the engine stays free of the
  Prometheus client. The API serves the registry at /metrics.

COLLECTORS:
  compengine_reports_total{outcome}
  compengine_report_duration_seconds
  compengine_benchmark_points_total{result}
  compengine_market_comparison_degraded_total{metric,status}
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/compensation-engine/compensation"
)

const (
	ResultAccepted = "accepted"
	ResultSkipped  = "skipped"
)

// Prometheus records engine activity.
type Prometheus struct {
	reports        *prometheus.CounterVec
	reportDuration prometheus.Histogram
	benchmarks     *prometheus.CounterVec
	degraded       *prometheus.CounterVec
}

var _ compensation.Recorder = (*Prometheus)(nil)

// New registers the collectors on registerer. A nil registerer uses
// prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *Prometheus {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compengine_reports_total",
			Help: "Provider reports generated, by outcome.",
		}, []string{"outcome"}),
		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compengine_report_duration_seconds",
			Help:    "Provider report generation latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		benchmarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compengine_benchmark_points_total",
			Help: "Benchmark points ingested, by result.",
		}, []string{"result"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compengine_market_comparison_degraded_total",
			Help: "Market comparisons reported without a percentile.",
		}, []string{"metric", "status"}),
	}

	registerer.MustRegister(m.reports, m.reportDuration, m.benchmarks, m.degraded)
	return m
}

func (m *Prometheus) ReportGenerated(outcome string, elapsed time.Duration) {
	m.reports.WithLabelValues(outcome).Inc()
	m.reportDuration.Observe(elapsed.Seconds())
}

func (m *Prometheus) BenchmarkPointsIngested(accepted, skipped int) {
	m.benchmarks.WithLabelValues(ResultAccepted).Add(float64(accepted))
	m.benchmarks.WithLabelValues(ResultSkipped).Add(float64(skipped))
}

func (m *Prometheus) MarketDegraded(metric string, status compensation.MarketStatus) {
	m.degraded.WithLabelValues(metric, string(status)).Inc()
}
