// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/shuowencs/Crossover-Jackknife/internal/report"
	"github.com/shuowencs/Crossover-Jackknife/internal/store"
)

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	var runID, matrixPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored runs and their summary tables",
		Long: `Without --run, list the runs in the state database. With --run, print the
summary tables of that run, and optionally export its trial matrix.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := c.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			if runID == "" {
				runs, err := db.ListRuns(ctx)
				if err != nil {
					return err
				}
				renderRuns(cmd.OutOrStdout(), runs)
				return nil
			}

			if _, err := db.GetRun(ctx, runID); err != nil {
				return err
			}
			tables, err := db.LoadTables(ctx, runID)
			if err != nil {
				return err
			}
			if err := report.RenderTables(cmd.OutOrStdout(), tables, c.Cfg.OutputFormat); err != nil {
				return err
			}

			if matrixPath != "" {
				m, err := db.LoadMatrix(ctx, runID)
				if err != nil {
					return err
				}
				if err := report.WriteMatrixCSV(matrixPath, m); err != nil {
					return fmt.Errorf("write trial matrix: %w", err)
				}
				c.Logger.Info("wrote trial matrix", "path", matrixPath, "trials", m.Len())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run ID to report")
	cmd.Flags().StringVar(&matrixPath, "matrix", "", "Also write the run's trial matrix to this CSV file")
	return cmd
}

func renderRuns(w io.Writer, runs []*store.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "(0 runs)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"id", "status", "trials", "reps", "failed", "started"})
	for _, r := range runs {
		t.AppendRow(table.Row{r.ID, r.Status, r.Trials, r.Replications, r.FailedTrials, r.StartedAt.Local().Format(time.DateTime)})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d runs)\n", len(runs))
}
