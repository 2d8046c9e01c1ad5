package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"placementai/ml"
)

type generateOptions struct {
	count   int
	seed    int64
	out     string
	csvPath string
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic student dataset",
		Long: `Generate synthetic student profiles with placement labels.

Each feature is drawn uniformly from its range and the label is a Bernoulli
draw against the placement heuristic, so the classes overlap. The dataset
is written as a JSON array and optionally exported as CSV.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts)
		},
	}

	cmd.Flags().IntVar(&opts.count, "count", ml.DefaultSampleCount, "Number of records to generate")
	cmd.Flags().Int64Var(&opts.seed, "seed", -1, "Random seed (negative uses the clock)")
	cmd.Flags().StringVar(&opts.out, "out", "data.json", "Output dataset path")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "Also export the dataset as CSV to this path")

	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	dataset, err := ml.NewGenerator(opts.seed).Generate(opts.count)
	if err != nil {
		return fmt.Errorf("generating dataset: %w", err)
	}
	if err := ml.SaveDataset(opts.out, dataset); err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}
	root.log().Info("dataset written", zap.String("path", opts.out), zap.Int("records", len(dataset)))

	if opts.csvPath != "" {
		f, err := os.Create(opts.csvPath)
		if err != nil {
			return fmt.Errorf("creating csv: %w", err)
		}
		if err := ml.WriteCSV(f, dataset, ml.FeatureNames()); err != nil {
			f.Close()
			return fmt.Errorf("writing csv: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing csv: %w", err)
		}
	}

	p := newPrinter()
	p.Fprintf(cmd.OutOrStdout(), "Generated %d records (%.2f%% placed) -> %s\n",
		len(dataset), dataset.PositiveRate()*100, opts.out)
	return nil
}
