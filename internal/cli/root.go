// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package cli provides the mcpanel command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shuowencs/Crossover-Jackknife/internal/cli/commands"
	"github.com/shuowencs/Crossover-Jackknife/internal/config"
	"github.com/shuowencs/Crossover-Jackknife/internal/report"
	"github.com/shuowencs/Crossover-Jackknife/internal/rngscope"
)

// Version information (set at build time).
var Version = "0.1.0"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "mcpanel",
		Short: "Monte Carlo calibration of Arellano-Bond estimates",
		Long: `mcpanel calibrates a fixed-effects model of democracy and growth on a
balanced country panel, simulates synthetic panels from it, and measures how
well the Arellano-Bond estimator and its bootstrap standard errors recover the
true coefficients and the long-run effect of democracy.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}

			cfg, used, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			if used != "" {
				logger.Debug("using config file", "path", used)
			}

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	algorithms := make([]string, 0, len(rngscope.Algorithms()))
	for _, a := range rngscope.Algorithms() {
		algorithms = append(algorithms, string(a))
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+")")
	flags.String("data", "", "CSV file of the calibration panel")
	flags.IntP("trials", "n", config.DefaultTrials, "Number of Monte Carlo trials")
	flags.IntP("bootstrap-reps", "b", config.DefaultBootstrapReps, "Bootstrap replications per trial")
	flags.IntP("workers", "w", 0, "Trial workers (default: one per CPU)")
	flags.Int("inner-workers", 0, "Bootstrap workers per trial (0: 1 when trials run in parallel)")
	flags.Uint64("seed", config.DefaultSeed, "Seed of the Monte Carlo stream")
	flags.Uint64("bootstrap-seed", config.DefaultSeed, "Seed of every trial's bootstrap stream")
	flags.String("rng", string(rngscope.DefaultAlgorithm), "Random stream algorithm ("+strings.Join(algorithms, "|")+")")
	flags.String("resampler", config.DefaultResampler, "Bootstrap resampler (block|wild)")
	flags.Int("gmm-steps", 2, "GMM steps (1|2)")
	flags.Int("max-instrument-lag", 99, "Deepest lag used as a GMM instrument")
	flags.Bool("collapse", false, "Collapse the GMM instrument matrix")
	flags.Bool("use-weights", false, "Weight GMM moments by the panel weight column")
	flags.String("output-dir", config.DefaultOutputDir, "Directory for CSV and YAML outputs")
	flags.String("state", config.DefaultStatePath, "Path to the run database")
	flags.String("log-level", config.DefaultLogLevel, "Log level (debug|info|warn|error)")
	flags.String("log-format", config.DefaultLogFormat, "Log format (text|json)")
	flags.StringP("output", "o", report.FormatTable, "Output format ("+strings.Join(report.Formats(), "|")+")")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return report.Formats(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("rng", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return algorithms, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewCalibrateCommand())
	rootCmd.AddCommand(commands.NewSimulateCommand())
	rootCmd.AddCommand(commands.NewReportCommand())

	return rootCmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel a running study.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
