package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"placementai/inference"
	"placementai/ml"
)

type predictOptions struct {
	model string
	input string
}

type predictOutput struct {
	Placed      bool   `json:"placed"`
	Probability string `json:"probability"`
	Message     string `json:"message"`
}

func newPredictCommand(root *rootOptions) *cobra.Command {
	opts := &predictOptions{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a single student profile",
		Long: `Score one student profile against a saved artifact.

The profile is a flat JSON object with every feature the artifact was
trained on; pass "-" to read it from stdin. The result is printed in the
same shape the HTTP service returns.

  placementctl predict --input '{"cgpa":8.5,"iq":115,"projects":3,"internships":1,"techScore":80,"commScore":75,"backlogs":0,"hackathons":2,"certifications":2}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "model_state.json", "Artifact to load")
	cmd.Flags().StringVar(&opts.input, "input", "", "Profile as a JSON object, or - for stdin")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runPredict(cmd *cobra.Command, root *rootOptions, opts *predictOptions) error {
	_, artifact, err := ml.LoadModel(ml.ModelTypeLogisticRegression, opts.model)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	var reader io.Reader = strings.NewReader(opts.input)
	if opts.input == "-" {
		reader = cmd.InOrStdin()
	}
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(reader).Decode(&fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("input must be a JSON object")
		}
		return fmt.Errorf("parsing input: %w", err)
	}
	input, err := ml.DecodeFeatures(fields, artifact.FeatureOrder)
	if err != nil {
		return err
	}

	service, err := inference.NewService(artifact, inference.WithLogger(root.log()), inference.WithCacheSize(0))
	if err != nil {
		return err
	}
	result, err := service.Predict(cmd.Context(), input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(predictOutput{
		Placed:      result.Placed,
		Probability: result.ProbabilityText,
		Message:     result.Message,
	})
}
