package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/crossasset/internal/api"
	"github.com/wonny/crossasset/internal/api/handlers"
	"github.com/wonny/crossasset/internal/builder"
	"github.com/wonny/crossasset/internal/metrics"
	"github.com/wonny/crossasset/internal/scheduler"
	"github.com/wonny/crossasset/internal/scheduler/jobs"
	"github.com/wonny/crossasset/pkg/config"
	"github.com/wonny/crossasset/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the calibration service",
	Long: `Starts the HTTP service around a calibrated cross-asset model.

This command:
- loads market data from the --market file, or PostgreSQL with --from-db
- calibrates the model described by the --model file
- schedules periodic recalibration on market data changes
- serves the model state over HTTP

Endpoints:
  GET  /health
  GET  /metrics
  GET  /api/model
  POST /api/model/recalibrate
  GET  /api/calibration/report
  GET  /api/calibration/errors/{class}/{name}

Example:
  go run ./cmd/crossasset serve
  go run ./cmd/crossasset serve --port 8099 --model model.yaml`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	log := logger.New(cfg)
	log.WithFields(map[string]interface{}{
		"port":  cfg.Port,
		"env":   cfg.Env,
		"model": modelFile,
	}).Info("Initializing calibration service")

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

	// Warm up the model. A failure here is not fatal: the scheduler keeps
	// retrying and the API reports 503 until the first build succeeds.
	if _, err := b.Model(); err != nil {
		log.WithError(err).Error("initial calibration failed")
	} else {
		metrics.RecordReport(b.Report())
	}

	sched := scheduler.New(log)
	job := jobs.NewRecalibrationJob(b, log, cfg.RecalibrationSchedule)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("schedule recalibration: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	modelHandler := handlers.NewModelHandler(b, log)
	router := api.NewRouter(modelHandler, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("Calibration service started")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
