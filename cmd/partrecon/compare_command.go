package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"partrecon/internal/config"
	"partrecon/internal/coverage"
	"partrecon/internal/manifest"
	"partrecon/internal/reconcile"
	"partrecon/internal/results"
	"partrecon/internal/tolerance"
)

const compareLong = `Compare classifies every expected field of every manifest file and writes a report.
The command exits non-zero when any field is FAIL or MISSING.`

type compareFlags struct {
	tolerance float64
	manifest  string
	results   string
	report    string
	format    string
	track     bool
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var flags compareFlags

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare actual results against the manifest",
		Long:  compareLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			format, err := outputFormat(flags.format)
			if err != nil {
				return err
			}
			if flags.tolerance < 0 {
				return errors.New("--tolerance must be non-negative")
			}
			// An explicit --tolerance wins, including zero.
			var relative *float64
			if cfg.Compare.RelativeTolerance > 0 {
				relative = &cfg.Compare.RelativeTolerance
			}
			if cmd.Flags().Changed("tolerance") {
				relative = &flags.tolerance
			}

			manifestPath, err := pathOr(flags.manifest, cfg.Paths.Manifest)
			if err != nil {
				return err
			}
			resultsPath, err := pathOr(flags.results, cfg.Paths.Results)
			if err != nil {
				return err
			}
			reportPath, err := pathOr(flags.report, cfg.Paths.Report)
			if err != nil {
				return err
			}

			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			actual, err := results.Load(resultsPath)
			if err != nil {
				return err
			}

			engine := reconcile.NewEngine(reconcile.Options{
				Bands:            configBands(cfg),
				RelativeOverride: relative,
				WidenFactor:      cfg.Compare.WidenFactor,
				Workers:          cfg.Compare.Workers,
				SuccessStatuses:  cfg.Compare.SuccessStatuses,
				Logger:           logger,
			})
			report, err := engine.Run(cmd.Context(), m, actual)
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := reconcile.Save(reportPath, report); err != nil {
					return err
				}
			}
			if flags.track {
				if _, err := recordCoverage(cmd.Context(), cfg, logger, report); err != nil {
					return err
				}
			}

			if format == formatJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				renderCompareReport(cmd, report, reportPath)
			}
			return report.Err()
		},
	}

	cmd.Flags().Float64Var(&flags.tolerance, "tolerance", 0, "Relative tolerance applied to every quantity class")
	cmd.Flags().StringVar(&flags.manifest, "manifest", "", "Manifest path (default paths.manifest)")
	cmd.Flags().StringVar(&flags.results, "results", "", "Actual results path (default paths.results)")
	cmd.Flags().StringVar(&flags.report, "report", "", "Report output path (default paths.report)")
	cmd.Flags().StringVar(&flags.format, "format", formatText, "Output format: text or json")
	cmd.Flags().BoolVar(&flags.track, "track", false, "Append the run to the coverage history")
	return cmd
}

func configBands(cfg *config.Config) tolerance.Bands {
	bands := make(tolerance.Bands, len(cfg.Tolerances))
	for class, band := range cfg.Tolerances {
		bands[tolerance.Class(class)] = tolerance.Band{Relative: band.Relative, MinAbs: band.MinAbs}
	}
	return bands
}

func recordCoverage(ctx context.Context, cfg *config.Config, logger *slog.Logger, report *reconcile.Report) (coverage.Snapshot, error) {
	store, err := coverage.Open(ctx, cfg.Coverage.Backend, cfg.Paths.History)
	if err != nil {
		return coverage.Snapshot{}, err
	}
	defer store.Close()
	return coverage.NewTracker(store, logger).Record(ctx, report)
}

func renderCompareReport(cmd *cobra.Command, report *reconcile.Report, reportPath string) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	counts := report.Totals.Counts

	overall := statusOK
	verdict := "passed"
	if !report.Passed() {
		overall = statusError
		verdict = "failed"
	}

	writeLines(out, renderSectionHeader("Reconciliation", colorize)...)
	writeLines(out,
		renderStatusLine("Result", overall, verdict, colorize),
		renderStatusLine("Manifest version", statusInfo, report.ManifestVersion, colorize),
		renderStatusLine("Run", statusInfo, report.RunID, colorize),
		renderStatusLine("Parts passing", overall, fmt.Sprintf("%d/%d", report.Totals.PassingParts, report.Totals.Parts), colorize),
		renderStatusLine("Fields", statusInfo, strconv.Itoa(report.Totals.Fields), colorize),
		renderStatusLine("Coverage", statusInfo, formatCoverage(report.Totals.Coverage), colorize),
		renderStatusLine("Unexpected files", kindForCount(len(report.Unexpected), false), strconv.Itoa(len(report.Unexpected)), colorize),
		renderStatusLine("Coercion errors", kindForCount(len(report.CoercionErrors), false), strconv.Itoa(len(report.CoercionErrors)), colorize),
	)
	if reportPath != "" {
		writeLines(out, renderStatusLine("Report", statusInfo, reportPath, colorize))
	}

	countRows := make([][]string, 0, len(reconcile.Statuses))
	for _, status := range reconcile.Statuses {
		countRows = append(countRows, []string{colorizeStatus(status, colorize), strconv.Itoa(counts[status])})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, tableSpec{
		headers: []string{"Status", "Fields"},
		rows:    countRows,
		footer:  []string{"Total", strconv.Itoa(counts.Total())},
		aligns:  []columnAlignment{alignLeft, alignRight},
	}.render())

	partRows := make([][]string, 0, len(report.Parts))
	for _, part := range report.Parts {
		result := "PASS"
		if !part.Passing {
			result = "FAIL"
		}
		partRows = append(partRows, []string{
			part.File,
			result,
			strconv.Itoa(part.Counts.Total()),
			strconv.Itoa(part.Counts[reconcile.StatusMatch] + part.Counts[reconcile.StatusTolerance]),
			strconv.Itoa(part.Counts[reconcile.StatusNotImpl]),
			strconv.Itoa(part.Counts[reconcile.StatusFail] + part.Counts[reconcile.StatusMissing]),
			formatCoverage(part.Counts.Coverage()),
		})
	}
	if len(partRows) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"File", "Result", "Fields", "Matched", "Not impl", "Blocking", "Coverage"},
			partRows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
	}

	var issueRows [][]string
	for _, result := range report.Results {
		if result.Status.Passing() || result.Status == reconcile.StatusNotImpl {
			continue
		}
		issueRows = append(issueRows, []string{
			result.File,
			result.Field,
			colorizeStatus(result.Status, colorize),
			result.Expected,
			result.Actual,
			result.Note,
		})
	}
	if len(issueRows) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"File", "Field", "Status", "Expected", "Actual", "Note"}, issueRows, nil))
	}

	if len(report.Unexpected) > 0 {
		fmt.Fprintln(out)
		writeLines(out, renderSectionHeader("Unexpected files", colorize)...)
		for _, file := range report.Unexpected {
			fmt.Fprintf(out, "%s%s\n", statusIndent, file)
		}
	}
}

func formatCoverage(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64) + "%"
}
