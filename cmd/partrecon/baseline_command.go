package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"partrecon/internal/apperr"
	"partrecon/internal/baseline"
	"partrecon/internal/config"
	"partrecon/internal/filemap"
	"partrecon/internal/fileutil"
	"partrecon/internal/flatfile"
	"partrecon/internal/manifest"
	"partrecon/internal/results"
)

type baselineFlags struct {
	export     string
	properties string
	manifest   string
	partsDir   string
	listing    string
	results    string
	merge      bool
	dryRun     bool
}

func newBuildBaselineCommand(ctx *commandContext) *cobra.Command {
	var flags baselineFlags

	cmd := &cobra.Command{
		Use:   "build-baseline",
		Short: "Build or update the gold-standard manifest from the legacy export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			if flags.partsDir != "" && flags.listing != "" {
				return errors.New("--parts-dir and --listing are mutually exclusive")
			}
			return runBuildBaseline(cmd, cfg, logger, flags)
		},
	}

	cmd.Flags().StringVar(&flags.export, "export", "", "Legacy export file (default paths.export)")
	cmd.Flags().StringVar(&flags.properties, "properties", "", "Legacy property dump JSON (default paths.properties)")
	cmd.Flags().StringVar(&flags.manifest, "manifest", "", "Manifest to write (default paths.manifest)")
	cmd.Flags().StringVar(&flags.partsDir, "parts-dir", "", "Directory of CAD files used to resolve part keys")
	cmd.Flags().StringVar(&flags.listing, "listing", "", "Text file listing CAD file names, one per line")
	cmd.Flags().StringVar(&flags.results, "results", "", "Actual results used to decide NOT_IMPLEMENTED deviations")
	cmd.Flags().BoolVar(&flags.merge, "merge", false, "Keep existing entries and update their legacy tier")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Report what would change without writing the manifest")
	return cmd
}

func runBuildBaseline(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, flags baselineFlags) error {
	exportPath, err := pathOr(flags.export, cfg.Paths.Export)
	if err != nil {
		return err
	}
	manifestPath, err := pathOr(flags.manifest, cfg.Paths.Manifest)
	if err != nil {
		return err
	}

	doc, err := flatfile.NewParser(logger).ParseFile(exportPath)
	if err != nil {
		return err
	}

	properties, err := loadOptional(flags.properties, cfg.Paths.Properties, baseline.LoadProperties)
	if err != nil {
		return err
	}
	actual, err := loadOptional(flags.results, cfg.Paths.Results, results.Load)
	if err != nil {
		return err
	}

	mapper, err := buildMapper(cfg, logger, flags)
	if err != nil {
		return err
	}

	prior, err := manifest.Load(manifestPath)
	switch {
	case errors.Is(err, apperr.ErrMissingInput):
		prior = nil
	case err != nil:
		return err
	}

	opts := baseline.OptionsFromConfig(cfg)
	opts.Mapper = mapper
	opts.Logger = logger
	builder, err := baseline.New(opts)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrConfiguration, err)
	}

	m, report, err := builder.Build(baseline.Inputs{
		Export:     doc,
		Properties: properties,
		Prior:      prior,
		Merge:      flags.merge,
		Actual:     actual,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderBaselineReport(cmd, report, mapper.HasListing())
	if flags.dryRun {
		fmt.Fprintf(out, "\nDry run: %s not written\n", manifestPath)
		return nil
	}
	if err := manifest.Save(manifestPath, m); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nWrote manifest version %s to %s\n", m.Version, manifestPath)
	return nil
}

// loadOptional loads an input named by flag, which must exist, or by the
// configured path, which is skipped when absent.
func loadOptional[T any](flag, configured string, load func(string) (T, error)) (T, error) {
	var zero T
	path, err := pathOr(flag, configured)
	if err != nil || path == "" {
		return zero, err
	}
	if strings.TrimSpace(flag) == "" {
		exists, err := fileutil.Exists(path)
		if err != nil {
			return zero, err
		}
		if !exists {
			return zero, nil
		}
	}
	return load(path)
}

func buildMapper(cfg *config.Config, logger *slog.Logger, flags baselineFlags) (*filemap.Mapper, error) {
	partsDir, listing := cfg.Paths.PartsDir, cfg.Paths.Listing
	if flags.partsDir != "" {
		dir, err := config.ExpandPath(flags.partsDir)
		if err != nil {
			return nil, err
		}
		partsDir, listing = dir, ""
	}
	if flags.listing != "" {
		path, err := config.ExpandPath(flags.listing)
		if err != nil {
			return nil, err
		}
		partsDir, listing = "", path
	}

	var files []string
	var err error
	switch {
	case partsDir != "":
		files, err = filemap.ListDir(partsDir, cfg.Mapping.Include)
	case listing != "":
		files, err = filemap.ReadListing(listing)
	}
	if err != nil {
		return nil, err
	}
	if files == nil && (partsDir != "" || listing != "") {
		files = []string{}
	}

	return filemap.New(files, filemap.Options{
		DefaultExtension: cfg.Mapping.DefaultExtension,
		SecondaryKeys:    cfg.Mapping.SecondaryKeys,
		Logger:           logger,
	})
}

func renderBaselineReport(cmd *cobra.Command, report baseline.Report, listed bool) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	mapping := "default extension"
	if listed {
		mapping = "file listing"
	}
	writeLines(out, renderSectionHeader("Baseline", colorize)...)
	writeLines(out,
		renderStatusLine("Version", statusInfo, report.Version, colorize),
		renderStatusLine("Part keys", statusInfo, strconv.Itoa(report.Parts), colorize),
		renderStatusLine("Files", statusOK, fmt.Sprintf("%d (%s)", report.Files, mapping), colorize),
		renderStatusLine("Updated", statusInfo, strconv.Itoa(len(report.Updated)), colorize),
		renderStatusLine("Excluded", statusInfo, strconv.Itoa(len(report.Excluded)), colorize),
		renderStatusLine("Unmapped", kindForCount(len(report.Unmapped), false), strconv.Itoa(len(report.Unmapped)), colorize),
		renderStatusLine("Ambiguous", kindForCount(len(report.Ambiguous), false), strconv.Itoa(len(report.Ambiguous)), colorize),
		renderStatusLine("Anomalies", kindForCount(len(report.Anomalies), false), strconv.Itoa(len(report.Anomalies)), colorize),
		renderStatusLine("Coercion errors", kindForCount(len(report.CoercionErrors), false), strconv.Itoa(len(report.CoercionErrors)), colorize),
		renderStatusLine("Deviations added", statusInfo, strconv.Itoa(len(report.DeviationsAdded)), colorize),
		renderStatusLine("Deviations pruned", statusInfo, strconv.Itoa(len(report.DeviationsPruned)), colorize),
		renderStatusLine("Dropped entries", kindForCount(report.Discarded, false), strconv.Itoa(report.Discarded), colorize),
	)

	if len(report.Unmapped) > 0 {
		rows := make([][]string, 0, len(report.Unmapped))
		for _, key := range report.Unmapped {
			rows = append(rows, []string{key})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Unmapped key"}, rows, nil))
	}
	if len(report.Ambiguous) > 0 {
		rows := make([][]string, 0, len(report.Ambiguous))
		for _, amb := range report.Ambiguous {
			rows = append(rows, []string{amb.Key, amb.Chosen, strings.Join(amb.Candidates, ", ")})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Key", "Chosen", "Candidates"}, rows, nil))
	}
	if len(report.Anomalies) > 0 {
		rows := make([][]string, 0, len(report.Anomalies))
		for _, anomaly := range report.Anomalies {
			rows = append(rows, []string{anomaly.Section, strconv.Itoa(anomaly.Line), anomaly.Reason})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Section", "Line", "Reason"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft}))
	}
	if len(report.CoercionErrors) > 0 {
		rows := make([][]string, 0, len(report.CoercionErrors))
		for _, coercion := range report.CoercionErrors {
			rows = append(rows, []string{coercion.Part, coercion.Source, coercion.Value})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Part", "Field", "Value"}, rows, nil))
	}
}
