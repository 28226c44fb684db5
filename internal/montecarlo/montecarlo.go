// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package montecarlo drives the simulation study: every trial simulates a
// synthetic panel, estimates it once, and bootstraps it for standard errors.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/shuowencs/Crossover-Jackknife/internal/bootstrap"
	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
	"github.com/shuowencs/Crossover-Jackknife/internal/pool"
	"github.com/shuowencs/Crossover-Jackknife/internal/resample"
	"github.com/shuowencs/Crossover-Jackknife/internal/rngscope"
)

// Simulator draws one synthetic panel from its own stream.
type Simulator interface {
	Simulate(rng *rngscope.Stream) *panel.Panel
}

// Options for a Monte Carlo run.
type Options struct {
	// Number of Monte Carlo trials
	Trials int
	// Bootstrap replications per trial
	Replications int
	// Outer (trial) workers; non-positive means one per CPU
	Workers int
	// Inner (bootstrap) workers; zero applies NestedWorkers
	InnerWorkers int
	// Seed of the outer stream and seed shared by every trial's bootstrap
	Seed          uint64
	BootstrapSeed uint64
	Algorithm     rngscope.Algorithm
	Resampler     resample.Resampler
	Logger        *slog.Logger
}

// Driver runs Monte Carlo studies.
type Driver struct {
	Simulator Simulator
	Estimator bootstrap.Estimator
	Opts      Options
}

// New validates options and returns a driver.
func New(sim Simulator, est bootstrap.Estimator, opts Options) (*Driver, error) {
	if opts.Trials <= 0 {
		return nil, fmt.Errorf("montecarlo: trials must be > 0, got %d", opts.Trials)
	}
	if opts.Replications <= 0 {
		return nil, fmt.Errorf("montecarlo: bootstrap replications must be > 0, got %d", opts.Replications)
	}
	if opts.Algorithm == "" {
		opts.Algorithm = rngscope.DefaultAlgorithm
	}
	if _, err := rngscope.New(opts.Algorithm, opts.Seed); err != nil {
		return nil, err
	}
	if opts.Resampler == nil {
		opts.Resampler = resample.Block{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{Simulator: sim, Estimator: est, Opts: opts}, nil
}

// NestedWorkers picks the bootstrap worker count so the two nested pools do
// not oversubscribe the CPUs: an explicit inner count wins, otherwise the
// bootstrap runs sequentially when trials already run in parallel and uses
// every CPU when they do not.
func NestedWorkers(outer, inner int) int {
	if inner > 0 {
		return inner
	}
	if outer > 1 {
		return 1
	}
	return pool.Workers(0, int(^uint(0)>>1))
}

// Draw returns the synthetic panel of trial i (0-based), the same panel Run
// estimates for that trial.
func (d *Driver) Draw(i int) (*panel.Panel, error) {
	if i < 0 || i >= d.Opts.Trials {
		return nil, fmt.Errorf("montecarlo: trial %d outside 1..%d", i+1, d.Opts.Trials)
	}
	var out *panel.Panel
	err := rngscope.WithIsolatedSeed(d.Opts.Algorithm, d.Opts.Seed, func(root *rngscope.Stream) error {
		out = d.Simulator.Simulate(root.Substream(i))
		return nil
	})
	return out, err
}

// Run executes all trials. Trial i simulates from the i-th sub-stream of the
// outer seed; every trial bootstraps with the same bootstrap seed. Records
// are stored by trial index, so the matrix is identical for any worker count.
func (d *Driver) Run(ctx context.Context) (*Matrix, error) {
	o := d.Opts
	outer := pool.Workers(o.Workers, o.Trials)
	inner := NestedWorkers(outer, o.InnerWorkers)

	engine, err := bootstrap.New(d.Estimator, bootstrap.Options{
		Replications: o.Replications,
		Workers:      inner,
		Seed:         o.BootstrapSeed,
		Algorithm:    o.Algorithm,
		Resampler:    o.Resampler,
		Logger:       o.Logger,
	})
	if err != nil {
		return nil, err
	}

	o.Logger.Info("starting monte carlo",
		"trials", o.Trials, "replications", o.Replications,
		"outer_workers", outer, "inner_workers", inner,
		"resampler", o.Resampler.Name(), "algorithm", string(o.Algorithm))

	var done, bootFailed atomic.Int64
	var m *Matrix

	err = rngscope.WithIsolatedSeed(o.Algorithm, o.Seed, func(root *rngscope.Stream) error {
		streams := root.Substreams(o.Trials)

		records, err := pool.Map(ctx, o.Trials, outer, func(ctx context.Context, i int) (Record, error) {
			synthetic := d.Simulator.Simulate(streams[i])

			est, err := d.Estimator.Estimate(synthetic)
			if err != nil {
				var failure *estimator.EstimationFailure
				if !errors.As(err, &failure) {
					return Record{}, fmt.Errorf("trial %d: %w", i, err)
				}
				o.Logger.Debug("trial estimation failed", "trial", i, "error", err)
				d.progress(&done)
				return MissingRecord(), nil
			}

			boot, err := engine.Run(ctx, synthetic)
			if err != nil {
				return Record{}, fmt.Errorf("trial %d: %w", i, err)
			}
			bootFailed.Add(int64(boot.Failed))

			d.progress(&done)
			return NewRecord(est, boot.SE), nil
		})
		if err != nil {
			return err
		}

		m = &Matrix{Records: records, BootstrapFailed: int(bootFailed.Load())}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Logger.Info("monte carlo finished",
		"trials", m.Len(), "failed_trials", m.Failed(), "failed_replications", m.BootstrapFailed)
	return m, nil
}

// progress logs every tenth of the run.
func (d *Driver) progress(done *atomic.Int64) {
	n := int(done.Add(1))
	total := d.Opts.Trials
	step := total / 10
	if step == 0 {
		step = 1
	}
	if n%step == 0 || n == total {
		d.Opts.Logger.Info("trials completed", "done", n, "total", total)
	} else {
		d.Opts.Logger.Debug("trial completed", "done", n)
	}
}
