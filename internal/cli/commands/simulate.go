// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shuowencs/Crossover-Jackknife/internal/aggregate"
	"github.com/shuowencs/Crossover-Jackknife/internal/dgp"
	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
	"github.com/shuowencs/Crossover-Jackknife/internal/gmm"
	"github.com/shuowencs/Crossover-Jackknife/internal/montecarlo"
	"github.com/shuowencs/Crossover-Jackknife/internal/report"
	"github.com/shuowencs/Crossover-Jackknife/internal/resample"
	"github.com/shuowencs/Crossover-Jackknife/internal/rngscope"
	"github.com/shuowencs/Crossover-Jackknife/internal/store"
)

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the Monte Carlo study",
		Long: `Calibrate on the data, simulate synthetic panels, estimate and bootstrap
each one, and summarize bias, dispersion, coverage and interval length of the
coefficients and the long-run effect.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cfg := c.Cfg
			logger := c.Logger

			// 1. Load the data and calibrate the DGP. Everything is read before the
			//    parallel region starts.
			data, params, err := c.loadCalibration()
			if err != nil {
				return err
			}
			sim, err := dgp.New(data, params)
			if err != nil {
				return err
			}

			// 2. Resolve the stream algorithm and resampler
			alg, err := rngscope.ParseAlgorithm(cfg.RNGAlgorithm)
			if err != nil {
				return err
			}
			resampler, err := resample.ByName(cfg.Resampler)
			if err != nil {
				return err
			}

			// 3. Register the run
			var db *store.SQLiteStore
			var run *store.Run
			if !noStore {
				db, err = c.openStore()
				if err != nil {
					return err
				}
				defer db.Close()

				snapshot, err := cfg.YAML()
				if err != nil {
					return err
				}
				run, err = db.CreateRun(ctx, snapshot, cfg.Trials, cfg.BootstrapReps)
				if err != nil {
					return err
				}
				logger.Info("registered run", "run_id", run.ID)
			}
			fail := func(err error) error {
				if run != nil {
					_ = db.CompleteRun(ctx, run.ID, store.RunStatusFailed, err.Error())
				}
				return err
			}

			// 4. Monte Carlo
			driver, err := montecarlo.New(sim, estimator.New(gmm.New(cfg.GMMOptions())), montecarlo.Options{
				Trials:        cfg.Trials,
				Replications:  cfg.BootstrapReps,
				Workers:       cfg.Workers,
				InnerWorkers:  cfg.InnerWorkers,
				Seed:          cfg.Seed,
				BootstrapSeed: cfg.BootstrapSeed,
				Algorithm:     alg,
				Resampler:     resampler,
				Logger:        logger,
			})
			if err != nil {
				return fail(err)
			}

			start := time.Now()
			m, err := driver.Run(ctx)
			if err != nil {
				return fail(fmt.Errorf("monte carlo: %w", err))
			}
			logger.Info("simulation done", "elapsed", time.Since(start).Round(time.Millisecond))

			// 5. Summary tables over the completed trials
			tables, err := aggregate.SummarizeMatrix(m, params.Truth())
			if err != nil {
				return fail(err)
			}
			if skipped := m.Failed(); skipped > 0 {
				logger.Warn("trials skipped after estimation failure", "skipped", skipped, "trials", m.Len())
			}

			// 6. Outputs
			if err := report.RenderTables(cmd.OutOrStdout(), tables, cfg.OutputFormat); err != nil {
				return fail(err)
			}
			if err := report.WriteOutputs(cfg.OutputDir, tables, m); err != nil {
				return fail(err)
			}
			logger.Info("wrote outputs", "dir", cfg.OutputDir)

			// 7. Persist the run
			if run != nil {
				if err := db.SaveMatrix(ctx, run.ID, m); err != nil {
					return fail(err)
				}
				if err := db.SaveTables(ctx, run.ID, tables); err != nil {
					return fail(err)
				}
				if err := db.CompleteRun(ctx, run.ID, store.RunStatusCompleted, ""); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", run.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not record the run in the state database")
	return cmd
}
