// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package bootstrap estimates standard errors of the estimate vector by
// repeatedly resampling a panel and re-running the estimator.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
	"github.com/shuowencs/Crossover-Jackknife/internal/pool"
	"github.com/shuowencs/Crossover-Jackknife/internal/resample"
	"github.com/shuowencs/Crossover-Jackknife/internal/rngscope"
)

// NumTracked is the number of estimate-vector components the bootstrap
// tracks: every component except the long-run standard error, whose
// bootstrap counterpart is the bootstrap SE of the long-run effect itself.
const NumTracked = estimator.VectorLen - 1

// Names labels the components of SE.
func Names() []string {
	names := estimator.Names()[:NumTracked]
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "bse_" + n
	}
	return out
}

// SE is one bootstrap standard error per tracked component. Missing entries are NaN.
type SE [NumTracked]float64

// Estimator is what the bootstrap re-runs on every resample.
type Estimator interface {
	Estimate(p *panel.Panel) (estimator.Vector, error)
}

// Options for a bootstrap run.
type Options struct {
	// Number of bootstrap replications
	Replications int
	// Worker goroutines; 1 runs the replications sequentially
	Workers int
	// Seed and algorithm of the bootstrap's isolated stream
	Seed      uint64
	Algorithm rngscope.Algorithm
	// Resampler, block bootstrap when nil
	Resampler resample.Resampler
	Logger    *slog.Logger
}

// Result of a bootstrap run.
type Result struct {
	SE SE
	// Draws[b] is the estimate vector of replication b (missing when it failed)
	Draws []estimator.Vector
	// Failed counts replications whose estimation failed
	Failed int
}

// Engine runs bootstraps with fixed options.
type Engine struct {
	Estimator Estimator
	Opts      Options
}

// New validates options and returns an engine.
func New(est Estimator, opts Options) (*Engine, error) {
	if opts.Replications <= 0 {
		return nil, fmt.Errorf("bootstrap: replications must be > 0, got %d", opts.Replications)
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
	return &Engine{Estimator: est, Opts: opts}, nil
}

// Run bootstraps p. Replication b resamples with the b-th sub-stream of the
// engine's seeded stream, so the result is the same for any worker count and
// for every call with the same panel.
func (e *Engine) Run(ctx context.Context, p *panel.Panel) (*Result, error) {
	o := e.Opts
	var res *Result

	err := rngscope.WithIsolatedSeed(o.Algorithm, o.Seed, func(root *rngscope.Stream) error {
		streams := root.Substreams(o.Replications)

		draws, err := pool.Map(ctx, o.Replications, o.Workers, func(_ context.Context, b int) (estimator.Vector, error) {
			star := o.Resampler.Resample(p, streams[b])
			v, err := e.Estimator.Estimate(star)
			if err != nil {
				var failure *estimator.EstimationFailure
				if errors.As(err, &failure) {
					return estimator.Missing(), nil
				}
				return v, fmt.Errorf("bootstrap %d: %w", b, err)
			}
			return v, nil
		})
		if err != nil {
			return err
		}

		res = &Result{Draws: draws}
		for _, v := range draws {
			if v.IsMissing() {
				res.Failed++
			}
		}
		res.SE = Spread(draws)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Failed > 0 {
		o.Logger.Debug("bootstrap replications failed", "failed", res.Failed, "replications", o.Replications)
	}
	return res, nil
}

// Spread reduces bootstrap draws to one robust scale estimate per tracked component.
func Spread(draws []estimator.Vector) SE {
	var se SE
	column := make([]float64, len(draws))
	for c := 0; c < NumTracked; c++ {
		for b, v := range draws {
			column[b] = v[c]
		}
		se[c] = RobustScale(column)
	}
	return se
}

// Missing returns an SE vector with every entry missing.
func Missing() SE {
	var se SE
	for i := range se {
		se[i] = math.NaN()
	}
	return se
}
