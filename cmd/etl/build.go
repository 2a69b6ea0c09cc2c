package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
)

var errBuildFailed = errors.New("build failed")

func newBuildCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.runner.Build(ctx, force)
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			if run.Status != domain.RunStatusSucceeded {
				return errBuildFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "rerun every task, ignoring cached outputs")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the task statuses of the latest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openReadOnly(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.db.ListRuns(cmd.Context(), 1)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			run, err := a.db.GetRun(cmd.Context(), runs[0].ID)
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openReadOnly(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTATUS\tFORCE\tSTARTED\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", r.ID, r.Status, r.Force,
					r.StartedAt.Local().Format(time.DateTime), runDuration(r))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", constants.MaxRunHistory, "number of runs to show")
	return cmd
}

func openReadOnly(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, false)
}

func printRun(w io.Writer, run *domain.PipelineRun) {
	fmt.Fprintf(w, "run %s: %s (%s)\n", run.ID, run.Status, runDuration(run))
	if run.Error != nil {
		fmt.Fprintf(w, "  %s\n", *run.Error)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSTATUS\tDURATION\tDETAIL")
	for _, t := range run.Tasks {
		detail := t.Reason
		if t.Error != nil {
			detail = *t.Error
		}
		var d time.Duration
		if t.StartedAt != nil && t.FinishedAt != nil {
			d = t.FinishedAt.Sub(*t.StartedAt).Round(time.Millisecond)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Task, t.Status, d, detail)
	}
	tw.Flush()
}

func runDuration(r *domain.PipelineRun) time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt).Round(time.Second)
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
}
