package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	modelFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crossasset",
	Short: "Cross-asset model calibration service",
	Long: `Cross-asset model calibration service.

Calibrates a multi-currency cross-asset model (LGM rates, Black-Scholes
FX and equity, Dodgson-Kainth inflation and credit) against market data
and serves the calibrated model over HTTP.

Examples:
  go run ./cmd/crossasset validate --model model.yaml
  go run ./cmd/crossasset calibrate
  go run ./cmd/crossasset serve`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelFile, "model", "model.yaml", "model configuration file")
}
