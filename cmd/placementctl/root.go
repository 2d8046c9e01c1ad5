package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var version = "dev"

type rootOptions struct {
	logLevel string
	logger   *zap.Logger
}

func (o *rootOptions) log() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "placementctl",
		Short: "Generate data, train and query the placement model",
		Long: `placementctl drives the placement prediction pipeline offline.

It generates the synthetic student dataset, trains the logistic regression
model into an artifact, and scores single profiles or whole datasets
against a saved artifact.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger, err := newCLILogger(cmd.ErrOrStderr(), opts.logLevel)
		if err != nil {
			return err
		}
		opts.logger = logger
		return nil
	}

	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newTrainCommand(opts))
	cmd.AddCommand(newPredictCommand(opts))
	cmd.AddCommand(newEvaluateCommand(opts))

	return cmd
}

// newCLILogger writes console-encoded logs to w so stdout stays clean for
// command output.
func newCLILogger(w io.Writer, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}
