package builder

import (
	"time"

	"github.com/google/uuid"

	"github.com/wonny/crossasset/internal/model"
)

// StageReport records one factor's calibration within a build.
type StageReport struct {
	Stage        string                   `json:"stage"`
	Factor       string                   `json:"factor"`
	Mode         CalibrationType          `json:"mode"`
	Duration     time.Duration            `json:"duration"`
	Errors       []model.CalibrationError `json:"errors,omitempty"`
	ResidualNorm float64                  `json:"residual_norm"`
	Converged    bool                     `json:"converged"`
}

// CalibrationReport summarizes one complete model build.
type CalibrationReport struct {
	RunID      uuid.UUID     `json:"run_id"`
	ConfigHash string        `json:"config_hash"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageReport `json:"stages"`
}

func newCalibrationReport(configHash string) *CalibrationReport {
	return &CalibrationReport{
		RunID:      uuid.New(),
		ConfigHash: configHash,
		StartedAt:  time.Now(),
	}
}

func (r *CalibrationReport) add(stage, factor string, out stageOutcome, started time.Time) {
	r.Stages = append(r.Stages, StageReport{
		Stage:        stage,
		Factor:       factor,
		Mode:         out.Mode,
		Duration:     time.Since(started),
		Errors:       out.Errors,
		ResidualNorm: out.ResidualNorm,
		Converged:    out.Converged,
	})
}

func (r *CalibrationReport) finish() {
	r.FinishedAt = time.Now()
}
