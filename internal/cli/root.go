package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/catdog-api/internal/config"
	"github.com/Brownie44l1/catdog-api/internal/logger"
	"github.com/Brownie44l1/catdog-api/internal/metrics"
	"github.com/Brownie44l1/catdog-api/internal/model"
	"github.com/Brownie44l1/catdog-api/internal/pipeline"
)

// app carries configuration shared by all subcommands.
type app struct {
	cfg *config.Config
	// factory overrides the ONNX runtime, used by tests.
	factory model.NetworkFactory
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "catdog-api",
		Short: "Cat vs dog image classifier",
		Long: `catdog-api classifies photos as cat or dog with a VGG16-based ONNX model.
It serves a web UI and JSON API, and can classify files from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().String("model", "", "Path to the ONNX weights (overrides MODEL_PATH)")
	rootCmd.PersistentFlags().String("metadata", "", "Path to the model metadata JSON (overrides METADATA_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides LOG_FORMAT)")

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newClassifyCommand(a))
	rootCmd.AddCommand(newInfoCommand(a))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) load(cmd *cobra.Command) error {
	a.cfg = config.Load()

	flags := cmd.Flags()
	for flag, dst := range map[string]*string{
		"model":      &a.cfg.ModelPath,
		"metadata":   &a.cfg.MetadataPath,
		"log-level":  &a.cfg.LogLevel,
		"log-format": &a.cfg.LogFormat,
	} {
		if v, _ := flags.GetString(flag); v != "" {
			*dst = v
		}
	}

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return logger.Setup(a.cfg.LogLevel, a.cfg.LogFormat, cmd.ErrOrStderr())
}

// loadClassifier reads the weights once. The error is a *model.ModelLoadError.
func (a *app) loadClassifier() (*model.Classifier, error) {
	return model.LoadClassifier(model.LoadConfig{
		ModelPath:    a.cfg.ModelPath,
		MetadataPath: a.cfg.MetadataPath,
		LibraryPath:  a.cfg.ORTLibraryPath,
		Factory:      a.factory,
	}, model.WithObserver(func(d time.Duration) {
		metrics.InferenceDurationSeconds.Observe(d.Seconds())
	}))
}

func (a *app) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		MaxBytes:            a.cfg.MaxUploadBytes(),
		ConfidenceThreshold: a.cfg.ConfidenceThreshold,
		ThumbnailSize:       a.cfg.ThumbnailSize,
	}
}
