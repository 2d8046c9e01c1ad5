package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"placementai/ml"
)

type evaluateOptions struct {
	model string
	data  string
}

func newEvaluateCommand(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a saved model against a dataset",
		Long: `Evaluate a saved artifact against a labelled dataset.

Records are normalized with the statistics stored in the artifact, so the
dataset does not need to be the one the model was trained on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, artifact, err := ml.LoadModel(ml.ModelTypeLogisticRegression, opts.model)
			if err != nil {
				return fmt.Errorf("loading model: %w", err)
			}
			dataset, err := ml.LoadDataset(opts.data)
			if err != nil {
				return fmt.Errorf("loading dataset: %w", err)
			}
			metrics, err := ml.EvaluateDataset(artifact, dataset)
			if err != nil {
				return fmt.Errorf("evaluating: %w", err)
			}
			printMetrics(cmd.OutOrStdout(), "Evaluation", metrics)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "model_state.json", "Artifact to load")
	cmd.Flags().StringVar(&opts.data, "data", "data.json", "Labelled dataset")

	return cmd
}
