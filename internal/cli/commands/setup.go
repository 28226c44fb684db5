// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package commands implements the mcpanel subcommands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shuowencs/Crossover-Jackknife/internal/calibrate"
	"github.com/shuowencs/Crossover-Jackknife/internal/config"
	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
	"github.com/shuowencs/Crossover-Jackknife/internal/store"
)

// CommandContext holds common dependencies for commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext reads the config and logger the root command stored.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return &CommandContext{Cfg: cfg, Logger: config.GetLogger(cmd.Context())}, nil
}

// loadCalibration loads the data panel and fits the fixed-effects model on it.
func (c *CommandContext) loadCalibration() (*panel.Panel, *calibrate.Params, error) {
	if c.Cfg.Data == "" {
		return nil, nil, errors.New("no data file: set --data, data in the config file, or MCPANEL_DATA")
	}

	data, err := panel.LoadCSV(c.Cfg.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load data: %w", err)
	}
	c.Logger.Info("loaded panel", "path", c.Cfg.Data, "units", data.Units, "periods", data.Periods)

	params, err := calibrate.Fit(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to calibrate: %w", err)
	}
	c.Logger.Info("calibrated model", "sigma", params.Sigma, "long_run", params.LongRun, "obs", params.Obs)
	return data, params, nil
}

// openStore opens the run database, creating its directory.
func (c *CommandContext) openStore() (*store.SQLiteStore, error) {
	dir := filepath.Dir(c.Cfg.StatePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return store.Open(c.Cfg.StatePath)
}
