package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"titaniatest/internal/history"
	"titaniatest/internal/textutil"
	"titaniatest/internal/tieredlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past burn-in runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Duration", "Cameras", "Lines", "Faults", "Reconnects", "Result"},
					runRows(runs, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := strings.TrimSpace(args[0])
			return withHistory(ctx, func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", runID)
				}
				events, err := store.Events(cmd.Context(), runID, limit)
				if err != nil {
					return err
				}
				counts, err := store.EventCounts(cmd.Context(), runID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Run "+run.RunID, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Result", resultKind(run), resultLabel(run), colorize))
				fmt.Fprintln(out, renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(tieredlog.TimeLayout), colorize))
				fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, run.Duration(time.Now()).Round(time.Second).String(), colorize))
				fmt.Fprintln(out, renderStatusLine("Run log", statusInfo, run.RunLog, colorize))
				fmt.Fprintln(out, renderStatusLine("Left camera", statusInfo, run.LeftCamera, colorize))
				fmt.Fprintln(out, renderStatusLine("Right camera", statusInfo, run.RightCamera, colorize))
				if run.ExternalPort != "" {
					fmt.Fprintln(out, renderStatusLine("External port", statusInfo, run.ExternalPort, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Lines", statusInfo,
					fmt.Sprintf("%d of %d iterations", run.Persisted, run.Iterations), colorize))
				for _, kind := range sortedKinds(counts) {
					fmt.Fprintln(out, renderStatusLine(textutil.Title(kind), statusWarn, strconv.Itoa(counts[kind]), colorize))
				}

				fmt.Fprintln(out)
				if len(events) == 0 {
					fmt.Fprintln(out, "No events recorded")
					return nil
				}
				rows := make([][]string, 0, len(events))
				for _, event := range events {
					rows = append(rows, []string{
						event.Time.Local().Format(tieredlog.TimeLayout),
						event.Kind,
						event.Source,
						event.Detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Time", "Kind", "Source", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of events to show (0 for all)")
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("run history is disabled in the configuration")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func runRows(runs []*history.Run, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		cameras := run.LeftCamera + " / " + run.RightCamera
		if run.Virtual {
			cameras += " (virtual)"
		}
		rows = append(rows, []string{
			run.RunID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration(now).Round(time.Second).String(),
			cameras,
			strconv.Itoa(run.Persisted),
			strconv.Itoa(run.CameraTimeouts + run.CameraFaults + run.ChannelFaults),
			strconv.Itoa(run.Reconnects),
			resultLabel(run),
		})
	}
	return rows
}

func resultLabel(run *history.Run) string {
	if !run.Finished() {
		return "running"
	}
	label := run.Reason
	if label == "" {
		label = "finished"
	}
	if run.ExitCode != nil {
		label += " (exit " + strconv.Itoa(*run.ExitCode) + ")"
	}
	return label
}

func resultKind(run *history.Run) statusKind {
	switch {
	case !run.Finished():
		return statusInfo
	case run.ExitCode != nil && *run.ExitCode == 0:
		return statusOK
	case run.Reason == "manual_stop":
		return statusWarn
	default:
		return statusError
	}
}

func sortedKinds(counts map[string]int) []string {
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
