// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package config holds the settings of a simulation study and loads them
// from defaults, a YAML file, MCPANEL_ environment variables and CLI flags.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shuowencs/Crossover-Jackknife/internal/gmm"
	"github.com/shuowencs/Crossover-Jackknife/internal/report"
	"github.com/shuowencs/Crossover-Jackknife/internal/resample"
	"github.com/shuowencs/Crossover-Jackknife/internal/rngscope"
)

// Default configuration values.
const (
	DefaultConfigFile    = "mcpanel.yaml"
	DefaultTrials        = 500
	DefaultBootstrapReps = 200
	DefaultSeed          = 888
	DefaultResampler     = "block"
	DefaultOutputDir     = "output"
	DefaultStatePath     = "output/mcpanel.db"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// GMMConfig configures the difference GMM solver.
type GMMConfig struct {
	Steps            int  `koanf:"steps" yaml:"steps"`
	MaxInstrumentLag int  `koanf:"max_instrument_lag" yaml:"max_instrument_lag"`
	Collapse         bool `koanf:"collapse" yaml:"collapse"`
	UseWeights       bool `koanf:"use_weights" yaml:"use_weights"`
}

// Config holds all settings of a run.
type Config struct {
	// Data is the CSV file of the calibration panel
	Data string `koanf:"data" yaml:"data"`

	Trials        int    `koanf:"trials" yaml:"trials"`
	BootstrapReps int    `koanf:"bootstrap_reps" yaml:"bootstrap_reps"`
	Workers       int    `koanf:"workers" yaml:"workers"`
	InnerWorkers  int    `koanf:"inner_workers" yaml:"inner_workers"`
	Seed          uint64 `koanf:"seed" yaml:"seed"`
	BootstrapSeed uint64 `koanf:"bootstrap_seed" yaml:"bootstrap_seed"`
	RNGAlgorithm  string `koanf:"rng_algorithm" yaml:"rng_algorithm"`
	Resampler     string `koanf:"resampler" yaml:"resampler"`

	GMM GMMConfig `koanf:"gmm" yaml:"gmm"`

	OutputDir    string `koanf:"output_dir" yaml:"output_dir"`
	StatePath    string `koanf:"state_path" yaml:"state_path"`
	LogLevel     string `koanf:"log_level" yaml:"log_level"`
	LogFormat    string `koanf:"log_format" yaml:"log_format"`
	OutputFormat string `koanf:"output" yaml:"output"`
}

// Defaults returns the default settings as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"trials":                 DefaultTrials,
		"bootstrap_reps":         DefaultBootstrapReps,
		"workers":                runtime.NumCPU(),
		"inner_workers":          0,
		"seed":                   DefaultSeed,
		"bootstrap_seed":         DefaultSeed,
		"rng_algorithm":          string(rngscope.DefaultAlgorithm),
		"resampler":              DefaultResampler,
		"gmm.steps":              2,
		"gmm.max_instrument_lag": 99,
		"gmm.collapse":           false,
		"gmm.use_weights":        false,
		"output_dir":             DefaultOutputDir,
		"state_path":             DefaultStatePath,
		"log_level":              DefaultLogLevel,
		"log_format":             DefaultLogFormat,
		"output":                 report.FormatTable,
	}
}

// Validate checks that the settings describe a runnable study.
func (c *Config) Validate() error {
	if c.Trials <= 0 {
		return fmt.Errorf("trials must be > 0, got %d", c.Trials)
	}
	if c.BootstrapReps <= 0 {
		return fmt.Errorf("bootstrap_reps must be > 0, got %d", c.BootstrapReps)
	}
	if c.InnerWorkers < 0 {
		return fmt.Errorf("inner_workers must be >= 0, got %d", c.InnerWorkers)
	}
	if c.GMM.Steps != 1 && c.GMM.Steps != 2 {
		return fmt.Errorf("gmm.steps must be 1 or 2, got %d", c.GMM.Steps)
	}
	if c.GMM.MaxInstrumentLag < 2 {
		return fmt.Errorf("gmm.max_instrument_lag must be >= 2, got %d", c.GMM.MaxInstrumentLag)
	}
	if _, err := rngscope.ParseAlgorithm(c.RNGAlgorithm); err != nil {
		return err
	}
	if _, err := resample.ByName(c.Resampler); err != nil {
		return err
	}
	if !contains(report.Formats(), c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(report.Formats(), ", "))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// GMMOptions converts the solver settings.
func (c *Config) GMMOptions() gmm.Options {
	opts := gmm.DefaultOptions()
	opts.Steps = c.GMM.Steps
	opts.MaxLagY = c.GMM.MaxInstrumentLag
	opts.MaxLagD = c.GMM.MaxInstrumentLag
	opts.Collapse = c.GMM.Collapse
	opts.UseWeights = c.GMM.UseWeights
	return opts
}

// YAML returns the settings as a YAML document, the snapshot stored with a run.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
