package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"partrecon/internal/flatfile"
	"partrecon/internal/partkey"
)

type parseSummary struct {
	Path       string         `json:"path"`
	Stats      flatfile.Stats `json:"stats"`
	Records    int            `json:"records"`
	PartKeys   int            `json:"partKeys"`
	Unresolved int            `json:"unresolved"`
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "parse [EXPORT]",
		Short: "Parse a legacy export and summarize its sections",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			path, err := pathOr(arg, cfg.Paths.Export)
			if err != nil {
				return err
			}
			if path == "" {
				return errors.New("no export given and paths.export is not configured")
			}

			doc, err := flatfile.NewParser(logger).ParseFile(path)
			if err != nil {
				return err
			}
			summary := summarizeExport(path, doc)
			if jsonOutput {
				return writeJSON(cmd, summary)
			}
			renderParseSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the summary as JSON")
	return cmd
}

func summarizeExport(path string, doc *flatfile.Document) parseSummary {
	resolver := partkey.Default()
	keys := make(map[string]struct{})
	summary := parseSummary{Path: path, Stats: doc.Stats()}
	for _, record := range doc.All() {
		summary.Records++
		key, _, ok := resolver.Resolve(record)
		if !ok {
			summary.Unresolved++
			continue
		}
		keys[key] = struct{}{}
	}
	summary.PartKeys = len(keys)
	return summary
}

func renderParseSummary(cmd *cobra.Command, summary parseSummary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	rows := make([][]string, 0, len(summary.Stats.Sections))
	for _, section := range summary.Stats.Sections {
		rows = append(rows, []string{
			section.Code,
			strconv.Itoa(section.Blocks),
			strconv.Itoa(section.Records),
			strconv.Itoa(section.MaxWidth),
		})
	}

	writeLines(out, renderSectionHeader("Export", colorize)...)
	writeLines(out,
		renderStatusLine("File", statusInfo, summary.Path, colorize),
		renderStatusLine("Records", statusInfo, strconv.Itoa(summary.Records), colorize),
		renderStatusLine("Part keys", statusInfo, strconv.Itoa(summary.PartKeys), colorize),
		renderStatusLine("Unresolved records", kindForCount(summary.Unresolved, false), strconv.Itoa(summary.Unresolved), colorize),
		renderStatusLine("Ignored rows", kindForCount(summary.Stats.IgnoredRows, false), strconv.Itoa(summary.Stats.IgnoredRows), colorize),
		renderStatusLine("Skipped lines", statusInfo, strconv.Itoa(summary.Stats.SkippedLines), colorize),
	)
	fmt.Fprintln(out)
	fmt.Fprintln(out, tableSpec{
		headers: []string{"Section", "Blocks", "Records", "Fields"},
		rows:    rows,
		footer:  []string{"Total", "", strconv.Itoa(summary.Records), ""},
		aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	}.render())
}
