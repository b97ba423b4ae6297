// Package commands implements the graphpipe CLI.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/graphpipe/graphpipe/cmd/graphpipe/ui"
	"github.com/graphpipe/graphpipe/internal/config"
	"github.com/graphpipe/graphpipe/internal/llm"
	"github.com/graphpipe/graphpipe/internal/observability"
	"github.com/graphpipe/graphpipe/internal/pipeline"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "graphpipe",
	Short: "Extract graph diagrams from PDFs and animate them",
	Long: `graphpipe renders a graph diagram from a PDF page, asks a vision-capable
model for the graph's structure, and generates a manim script animating the
graph alongside its adjacency matrix. It maintains a local model catalog
with verified vision capabilities so the model choice is cheap, capable and
repeatable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment still applies
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "graphpipe",
		})

		ui.InitUI(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// newPipeline builds the pipeline from the loaded configuration.
func newPipeline() (*pipeline.Pipeline, error) {
	if cfg.API.Key == "" {
		return nil, fmt.Errorf("no API key: set OPENAI_API_KEY or GRAPHPIPE_API_KEY")
	}
	client := llm.NewClient(cfg.API.BaseURL, cfg.API.Key, cfg.API.RequestTimeout.Std(), logger)
	return pipeline.New(cfg, client, logger), nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
