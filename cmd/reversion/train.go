package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/config"
	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/metrics"
	"github.com/newthinker/reversion/internal/quality"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the signal quality classifier from journaled trades",
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	log, cfg, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	repo, err := modelRepository(cfg, log)
	if err != nil {
		return err
	}

	model, err := trainModel(context.Background(), cfg, repo, nil, log)
	if err != nil {
		return err
	}

	fmt.Printf("Model %s trained on %d samples (holdout %d, accuracy %.2f%%)\n",
		model.Version, model.Report.Samples, model.Report.TestSize, model.Report.Accuracy*100)
	return nil
}

// trainModel fits a classifier on every journaled trade with features and
// stores it as the latest model
func trainModel(ctx context.Context, cfg *config.Config, repo *quality.ArchiveRepository, reg *metrics.Registry, log *zap.Logger) (*quality.Model, error) {
	rec, err := journal.Open(cfg.Storage.Journal, log)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer rec.Close()

	trades, err := rec.Trades(ctx)
	if err != nil {
		reg.RecordTraining("failed")
		return nil, fmt.Errorf("reading trades: %w", err)
	}

	model, err := quality.NewTrainer(cfg.Quality.TrainerConfig, log).Train(journal.Samples(trades))
	if err != nil {
		reg.RecordTraining("insufficient")
		return nil, fmt.Errorf("training: %w", err)
	}

	if err := repo.Save(ctx, model); err != nil {
		reg.RecordTraining("failed")
		return nil, fmt.Errorf("saving model: %w", err)
	}
	reg.RecordTraining("ok")
	return model, nil
}
