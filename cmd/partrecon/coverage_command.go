package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"partrecon/internal/coverage"
	"partrecon/internal/reconcile"
)

const snapshotTimeLayout = "2006-01-02 15:04"

func newTrackCoverageCommand(ctx *commandContext) *cobra.Command {
	var reportFlag string
	var window int
	var noAppend bool

	cmd := &cobra.Command{
		Use:   "track-coverage",
		Short: "Record a comparison report in the coverage history and show the trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			if window < 0 {
				return errors.New("--window must be non-negative")
			}
			if window == 0 {
				window = cfg.Coverage.Window
			}

			store, err := coverage.Open(cmd.Context(), cfg.Coverage.Backend, cfg.Paths.History)
			if err != nil {
				return err
			}
			defer store.Close()
			tracker := coverage.NewTracker(store, logger)

			out := cmd.OutOrStdout()
			if !noAppend {
				reportPath, err := pathOr(reportFlag, cfg.Paths.Report)
				if err != nil {
					return err
				}
				report, err := reconcile.LoadReport(reportPath)
				if err != nil {
					return err
				}
				snap, err := tracker.Record(cmd.Context(), report)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Recorded run %s (%d fields, %s coverage)\n\n", snap.RunID, snap.Total, formatCoverage(snap.Coverage))
			}

			rows, trend, ok, err := tracker.Trend(cmd.Context(), window)
			if err != nil {
				return err
			}
			renderCoverageTrend(cmd, rows, trend, ok)
			return nil
		},
	}

	cmd.Flags().StringVar(&reportFlag, "report", "", "Comparison report to record (default paths.report)")
	cmd.Flags().IntVar(&window, "window", 0, "Number of recent runs to show (default coverage.window)")
	cmd.Flags().BoolVar(&noAppend, "no-append", false, "Show the trend without recording a new run")
	return cmd
}

func renderCoverageTrend(cmd *cobra.Command, rows []coverage.Snapshot, trend coverage.Trend, ok bool) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if len(rows) == 0 {
		fmt.Fprintln(out, "No coverage history recorded yet")
		return
	}

	tableRows := make([][]string, 0, len(rows))
	for _, snap := range rows {
		tableRows = append(tableRows, []string{
			snap.Timestamp.Local().Format(snapshotTimeLayout),
			shortRunID(snap.RunID),
			strconv.Itoa(snap.Total),
			strconv.Itoa(snap.Match),
			strconv.Itoa(snap.Tolerance),
			strconv.Itoa(snap.NotImpl),
			strconv.Itoa(snap.Intentional),
			strconv.Itoa(snap.Bug),
			strconv.Itoa(snap.Missing),
			strconv.Itoa(snap.Fail),
			formatCoverage(snap.Coverage),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Date", "Run", "Total", "Match", "Tolerance", "Not impl", "Intentional", "Bug", "Missing", "Fail", "Coverage"},
		tableRows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	fmt.Fprintln(out)
	writeLines(out, renderSectionHeader("Trend", colorize)...)
	writeLines(out, renderStatusLine("Runs", statusInfo, strconv.Itoa(trend.Runs), colorize))
	if !ok || trend.Runs < 2 {
		writeLines(out, renderStatusLine("Trend", statusInfo, "need at least two runs", colorize))
		return
	}
	writeLines(out,
		renderStatusLine("MATCH", trendKind(trend.Match, true), coverage.FormatCount(trend.Match), colorize),
		renderStatusLine("NOT_IMPL", trendKind(trend.NotImpl, false), coverage.FormatCount(trend.NotImpl), colorize),
		renderStatusLine("FAIL", trendKind(trend.Fail, false), coverage.FormatCount(trend.Fail), colorize),
		renderStatusLine("Coverage", trendKind(signOf(trend.Coverage), true), coverage.FormatPercent(trend.Coverage), colorize),
	)
}

// trendKind colours a delta: growth is good for matches and coverage and bad
// for gaps and failures.
func trendKind(delta int, higherIsBetter bool) statusKind {
	switch {
	case delta == 0:
		return statusInfo
	case (delta > 0) == higherIsBetter:
		return statusOK
	default:
		return statusWarn
	}
}

func signOf(value float64) int {
	switch {
	case value > 0:
		return 1
	case value < 0:
		return -1
	default:
		return 0
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
