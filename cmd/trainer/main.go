package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/matchcast/internal/app"
	"github.com/yourusername/matchcast/internal/dataset"
	applogger "github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile    string
	algorithm     string
	seasons       []int
	validSeason   int
	validFraction float64
	evalSeason    int
	evalMatchday  int
	daysBack      int
	topN          int
	matchID       int64
	exportPath    string

	logger      *logrus.Logger
	application *app.App
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	for _, cmd := range []*cobra.Command{trainCmd, retrainCmd, exportCmd} {
		cmd.Flags().IntSliceVar(&seasons, "seasons", nil, "Training seasons (defaults to training.seasons)")
		cmd.Flags().IntVar(&validSeason, "valid-season", 0, "Hold out this season for validation")
		cmd.Flags().Float64Var(&validFraction, "valid-fraction", 0, "Hold out the most recent share of rows")
	}
	for _, cmd := range []*cobra.Command{trainCmd, retrainCmd} {
		cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "logistic, random_forest, gradient_boosting or auto")
	}
	for _, cmd := range []*cobra.Command{retrainCmd, evaluateCmd} {
		cmd.Flags().IntVar(&evalSeason, "eval-season", 0, "Only evaluate predictions of this season")
		cmd.Flags().IntVar(&daysBack, "days-back", -1, "Only evaluate matches from the last N days")
		cmd.Flags().IntVar(&topN, "top", 0, "Number of worst and best predictions to report")
	}
	evaluateCmd.Flags().IntVar(&evalMatchday, "matchday", 0, "Only evaluate predictions of this matchday")
	featuresCmd.Flags().Int64Var(&matchID, "match", 0, "Match id")
	_ = featuresCmd.MarkFlagRequired("match")
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "dataset.json", "Output file")
}

var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "Train, evaluate and retrain match outcome models",
	Long:  `Builds leakage-safe training tables, trains and promotes model artifacts, and runs the error-driven retraining loop.`,
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

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a model and promote it",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := trainingOptions(cmd)
		result, err := application.Training.Train(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Fold evaluated predictions back into training and promote the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := application.RetrainingOptions()
		t := trainingOptions(cmd)
		opts.Algorithm, opts.Seasons, opts.Split = t.Algorithm, t.Seasons, t.Split
		opts.Evaluation = evaluationRequest(cmd, opts.Evaluation)
		opts.Trigger = service.TriggerManual

		result, err := application.Retraining.Retrain(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Report realized error of stored predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := evaluationRequest(cmd, application.RetrainingOptions().Evaluation)
		if cmd.Flags().Changed("matchday") {
			req.Matchday = &evalMatchday
		}
		report, err := application.Retraining.Evaluate(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Show the point-in-time feature vector of a match",
	RunE: func(cmd *cobra.Command, args []string) error {
		fv, err := application.Composer.GetFeaturesForMatch(cmd.Context(), matchID)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"match_id":       fv.MatchID,
			"schema_version": fv.SchemaVersion,
			"quality":        fv.Quality,
			"features":       fv.Map(),
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current artifact and recent versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := application.Artifacts.Current()
		if err != nil {
			return err
		}
		meta, err := application.Artifacts.Metadata(current)
		if err != nil {
			return err
		}
		versions, err := application.Artifacts.List()
		if err != nil {
			return err
		}
		history := make([]string, 0, len(versions))
		for _, v := range versions {
			history = append(history, v.Version)
		}
		finished, err := application.DB.HealthCheck(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"current":  meta,
			"versions": history,
			"database": map[string]interface{}{"finished_matches": finished, "pool": application.DB.Stats()},
			"build":    map[string]string{"version": Version, "commit": GitCommit},
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the training table to a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := trainingOptions(cmd)
		ds, report, err := application.Datasets.Build(cmd.Context(), opts.Seasons)
		if err != nil {
			return err
		}
		if err := dataset.ExportToJSON(ds, exportPath); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"rows": ds.Len(), "path": exportPath}).Info("Dataset exported")
		return printJSON(report)
	},
}

func main() {
	rootCmd.AddCommand(trainCmd, retrainCmd, evaluateCmd, featuresCmd, statusCmd, exportCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// trainingOptions overlays command line flags on the configured defaults.
func trainingOptions(cmd *cobra.Command) service.TrainingOptions {
	opts := application.TrainingOptions()
	if algorithm != "" {
		opts.Algorithm = algorithm
	}
	if len(seasons) > 0 {
		opts.Seasons = seasons
	}
	if cmd.Flags().Changed("valid-season") {
		opts.Split.ValidSeason = &validSeason
	}
	if cmd.Flags().Changed("valid-fraction") {
		opts.Split.ValidSeason = nil
		opts.Split.ValidFraction = validFraction
	}
	return opts
}

func evaluationRequest(cmd *cobra.Command, req service.EvaluationRequest) service.EvaluationRequest {
	if cmd.Flags().Changed("eval-season") {
		req.Season = &evalSeason
	}
	if daysBack >= 0 {
		req.DaysBack = daysBack
	}
	if topN > 0 {
		req.TopN = topN
	}
	return req
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
