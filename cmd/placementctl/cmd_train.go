package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"placementai/db"
	"placementai/ml"
)

type trainOptions struct {
	data      string
	out       string
	epochs    int
	lr        float64
	testRatio float64
	seed      int64
	dbPath    string
}

func newTrainCommand(root *rootOptions) *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the placement model from a dataset",
		Long: `Train a logistic regression model on a generated dataset.

Min-max statistics are fitted over the whole dataset, the model is trained
with batch gradient descent, and the weights, bias, statistics and feature
order are written as a single artifact. With --test-ratio above zero a
holdout split is evaluated as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.data, "data", "data.json", "Dataset to train on")
	cmd.Flags().StringVar(&opts.out, "out", "model_state.json", "Artifact output path")
	cmd.Flags().IntVar(&opts.epochs, "epochs", ml.ProductionEpochs, "Gradient descent epochs")
	cmd.Flags().Float64Var(&opts.lr, "lr", ml.DefaultLearningRate, "Learning rate")
	cmd.Flags().Float64Var(&opts.testRatio, "test-ratio", 0, "Fraction held out for evaluation (0 trains on everything)")
	cmd.Flags().Int64Var(&opts.seed, "seed", -1, "Seed for the holdout shuffle")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Record the run in this sqlite database")

	return cmd
}

func runTrain(cmd *cobra.Command, root *rootOptions, opts *trainOptions) error {
	dataset, err := ml.LoadDataset(opts.data)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	cfg := ml.DefaultTrainConfig()
	cfg.Epochs = opts.epochs
	cfg.LearningRate = opts.lr
	cfg.TestRatio = opts.testRatio
	cfg.Seed = opts.seed

	artifact, report, err := ml.NewTrainer(cfg, root.log()).Run(dataset)
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}
	if err := artifact.Save(opts.out); err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}

	if opts.dbPath != "" {
		store, err := db.Open(opts.dbPath)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer store.Close()
		if err := store.SaveTrainingRun(cmd.Context(), report, opts.out); err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	p := newPrinter()
	p.Fprintf(w, "Trained on %d records in %v (run %s)\n", report.Samples, report.Duration.Round(time.Millisecond), report.RunID)
	p.Fprintf(w, "Final Training Accuracy: %.2f%%\n", report.Train.Accuracy*100)
	p.Fprintf(w, "Final Loss: %.4f\n", report.FinalLoss)
	if report.Test != nil {
		printMetrics(w, "Holdout", *report.Test)
	}
	p.Fprintf(w, "Model saved to %s\n", opts.out)
	return nil
}

func printMetrics(w io.Writer, title string, m ml.Metrics) {
	p := newPrinter()
	p.Fprintf(w, "%s (%d samples)\n", title, m.Samples)
	p.Fprintf(w, "  accuracy   %6.2f%%\n", m.Accuracy*100)
	p.Fprintf(w, "  precision  %6.2f%%\n", m.Precision*100)
	p.Fprintf(w, "  recall     %6.2f%%\n", m.Recall*100)
	p.Fprintf(w, "  f1         %7.4f\n", m.F1)
	p.Fprintf(w, "  log loss   %7.4f\n", m.LogLoss)
}
