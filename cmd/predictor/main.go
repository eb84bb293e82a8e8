package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/matchcast/internal/app"
	"github.com/yourusername/matchcast/internal/health"
	applogger "github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	matchID    int64
	matchIDs   []int64

	logger      *logrus.Logger
	application *app.App
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	predictCmd.Flags().Int64Var(&matchID, "match", 0, "Match id")
	_ = predictCmd.MarkFlagRequired("match")
	batchCmd.Flags().Int64SliceVar(&matchIDs, "matches", nil, "Comma separated match ids")
}

var rootCmd = &cobra.Command{
	Use:   "predictor",
	Short: "Serve match outcome probabilities from the promoted model",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := app.LoadConfig(ctx, configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = applogger.New(os.Stdout, cfg.App.LogLevel, cfg.App.Environment)
		application, err = app.New(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close()
		}
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict one match",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Registry.Load(); err != nil {
			return fmt.Errorf("%w: %w", models.ErrServiceNotReady, err)
		}
		result, err := application.Predictions.Predict(cmd.Context(), matchID)
		if err != nil {
			return describe(err)
		}
		return printJSON(result)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [match ids...]",
	Short: "Predict several matches, reporting skipped ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := append([]int64(nil), matchIDs...)
		for _, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid match id %q", a)
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return fmt.Errorf("no match ids given")
		}
		if err := application.Registry.Load(); err != nil {
			return fmt.Errorf("%w: %w", models.ErrServiceNotReady, err)
		}
		result, err := application.Predictions.BatchPredict(cmd.Context(), ids)
		if err != nil {
			return describe(err)
		}
		return printJSON(result)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run health and metrics endpoints with hot reload and scheduled retraining",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func main() {
	rootCmd.AddCommand(predictCmd, batchCmd, serveCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func serve(parent context.Context) error {
	cfg := application.Config
	metrics.InitRegistry()

	if err := application.Registry.Load(); err != nil {
		logger.WithError(err).Warn("Starting without a model artifact; readiness will fail until one is promoted")
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	server := health.NewServer(health.Config{
		ServiceName: "matchcast-predictor",
		Version:     Version,
		Port:        strconv.Itoa(cfg.Health.Port),
		Logger:      logger,
		DB:          application.DB,
		Model:       application.Registry,
		MetricsPath: cfg.Metrics.Path,
		Metrics:     metricsHandler(cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Health.Port),
	})
	if err := server.Start(ctx); err != nil {
		return err
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.Health.Port {
		metricsServer, err := startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
		if err != nil {
			return err
		}
		defer shutdownHTTP(metricsServer)
	}

	sched := scheduler.NewScheduler(logger, time.Duration(cfg.Training.TimeoutMinutes)*time.Minute)
	if cfg.Serving.ReloadIntervalSeconds > 0 {
		if err := sched.ScheduleReload(cfg.Serving.ReloadIntervalSeconds, application.Registry); err != nil {
			return err
		}
	}
	if cfg.Retraining.Enabled {
		if err := sched.ScheduleRetraining(cfg.Retraining.Schedule, application.Retraining, application.RetrainingOptions()); err != nil {
			return err
		}
	}
	if len(sched.Entries()) > 0 {
		if err := sched.Start(); err != nil {
			return err
		}
	}
	server.SetReady(true)

	logger.WithFields(logrus.Fields{
		"health_port":   cfg.Health.Port,
		"model_version": application.Registry.Version(),
		"retraining":    cfg.Retraining.Enabled,
		"next_run":      sched.GetNextRun(),
		"commit":        GitCommit,
	}).Info("Predictor serving")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Shutdown signal received")
	case <-ctx.Done():
	}

	server.SetReady(false)
	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			logger.WithError(err).Error("Error during scheduler shutdown")
		}
	}
	cancel()
	return server.Shutdown()
}

// startMetricsServer serves the prometheus registry on its own port.
func startMetricsServer(port int, path string) (*http.Server, error) {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %d: %w", port, err)
	}
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	srv := &http.Server{Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server stopped unexpectedly")
		}
	}()
	logger.WithFields(logrus.Fields{"port": port, "path": path}).Info("Metrics server listening")
	return srv, nil
}

func shutdownHTTP(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Metrics server shutdown failed")
	}
}

func metricsHandler(enabled bool) http.Handler {
	if !enabled {
		return nil
	}
	return metrics.Handler()
}

// describe maps caller-visible error categories to short messages.
func describe(err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("not found: %w", err)
	case errors.Is(err, models.ErrNotPredictable):
		return fmt.Errorf("not predictable: %w", err)
	case errors.Is(err, models.ErrInsufficientHistory):
		return fmt.Errorf("insufficient data: %w", err)
	case errors.Is(err, models.ErrServiceNotReady):
		return fmt.Errorf("not ready: %w", err)
	default:
		return err
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
