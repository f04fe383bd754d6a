package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/crossasset/internal/builder"
	"github.com/wonny/crossasset/pkg/config"
	"github.com/wonny/crossasset/pkg/logger"
)

// calibrateCmd represents the calibrate command
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Run one calibration and print the report",
	Long: `Calibrates the model described by the --model file against the
market snapshot once and prints the stage report.

The market snapshot is read from the --market file, or from PostgreSQL
with --from-db.

Example:
  go run ./cmd/crossasset calibrate
  go run ./cmd/crossasset calibrate --model model.yaml --market market.yaml
  go run ./cmd/crossasset calibrate --from-db`,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	modelCfg, err := builder.LoadModelConfig(modelFile)
	if err != nil {
		return fmt.Errorf("load model config: %w", err)
	}

	mkt, closeMarket, err := loadMarketData(cfg, log)
	if err != nil {
		return err
	}
	defer closeMarket()

	b, err := builder.NewBuilder(modelCfg, mkt, log)
	if err != nil {
		return fmt.Errorf("create builder: %w", err)
	}

	m, err := b.Model()
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	report := b.Report()
	fmt.Printf("Run %s (config %.12s)\n", report.RunID, report.ConfigHash)
	fmt.Printf("Model: %d currencies, %d fx, %d eq, %d inf, %d cr, state dim %d\n\n",
		m.NumCurrencies(), m.NumCurrencies()-1, m.NumEq(), m.NumInf(), m.NumCr(), m.StateDim())

	fmt.Printf("%-6s %-10s %-10s %-12s %-12s %s\n",
		"STAGE", "FACTOR", "MODE", "DURATION", "RESIDUAL", "CONVERGED")
	for _, st := range report.Stages {
		fmt.Printf("%-6s %-10s %-10s %-12s %-12.3e %v\n",
			st.Stage, st.Factor, st.Mode,
			st.Duration.Round(time.Millisecond), st.ResidualNorm, st.Converged)
	}

	fmt.Printf("\n✅ Calibration finished in %s\n",
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return nil
}
