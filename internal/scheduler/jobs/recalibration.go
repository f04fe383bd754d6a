// Package jobs holds the concrete scheduled jobs of the calibration service.
package jobs

import (
	"context"

	"github.com/wonny/crossasset/internal/builder"
	"github.com/wonny/crossasset/internal/metrics"
	"github.com/wonny/crossasset/pkg/logger"
)

// RecalibrationJob polls the model builder for market data staleness. The
// builder itself decides whether anything changed; an up to date model makes
// the poll a no-op.
type RecalibrationJob struct {
	builder  *builder.Builder
	logger   *logger.Logger
	schedule string
}

// NewRecalibrationJob creates the staleness poll on the given cron schedule.
func NewRecalibrationJob(b *builder.Builder, log *logger.Logger, schedule string) *RecalibrationJob {
	return &RecalibrationJob{builder: b, logger: log, schedule: schedule}
}

// Name identifies the job.
func (j *RecalibrationJob) Name() string { return "recalibration" }

// Schedule returns the cron expression.
func (j *RecalibrationJob) Schedule() string { return j.schedule }

// Run asks the builder for the model, rebuilding it if stale, and publishes
// the outcome to the metrics.
func (j *RecalibrationJob) Run(ctx context.Context) error {
	before := j.builder.Rebuilds()
	metrics.StaleFactors.Set(float64(len(j.builder.StaleFactors())))
	_, err := j.builder.Model()
	metrics.RecordRebuild(err)
	if err != nil {
		return err
	}
	if j.builder.Rebuilds() > before {
		metrics.RecordReport(j.builder.Report())
		j.logger.WithField("rebuilds", j.builder.Rebuilds()).Info("model recalibrated")
	}
	return nil
}
