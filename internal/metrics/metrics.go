// Package metrics exposes the Prometheus instrumentation of the calibration
// service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/crossasset/internal/builder"
)

var (
	// RecalibrationsTotal counts model builds by outcome.
	RecalibrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossasset_recalibrations_total",
		Help: "Number of model calibration runs by result.",
	}, []string{"result"})

	// StageDuration observes per-factor calibration stage durations.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crossasset_calibration_stage_duration_seconds",
		Help:    "Duration of one factor's calibration stage.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage", "factor"})

	// StageResidual reports the residual norm of the last calibration per
	// factor.
	StageResidual = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crossasset_calibration_residual",
		Help: "Residual norm of the last calibration stage per factor.",
	}, []string{"stage", "factor"})

	// StaleFactors reports how many factors were stale at the last poll.
	StaleFactors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossasset_stale_factors",
		Help: "Factors whose market data changed since the last build.",
	})
)

// RecordReport publishes one calibration report.
func RecordReport(r *builder.CalibrationReport) {
	if r == nil {
		return
	}
	for _, s := range r.Stages {
		StageDuration.WithLabelValues(s.Stage, s.Factor).Observe(s.Duration.Seconds())
		StageResidual.WithLabelValues(s.Stage, s.Factor).Set(s.ResidualNorm)
	}
}

// RecordRebuild counts one build attempt.
func RecordRebuild(err error) {
	if err != nil {
		RecalibrationsTotal.WithLabelValues("error").Inc()
		return
	}
	RecalibrationsTotal.WithLabelValues("success").Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
