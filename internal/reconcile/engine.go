// Package reconcile compares a run's actual results against the baseline
// manifest and classifies every expected field.
//
// For each file the expected value of a field comes from the highest tier
// that defines it. A part whose run outcome disagrees with shouldPass gets a
// single part-level FAIL and no field results. Everything else goes through
// Classify, so the precedence of statuses lives in one place.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"partrecon/internal/logging"
	"partrecon/internal/manifest"
	"partrecon/internal/results"
	"partrecon/internal/textutil"
	"partrecon/internal/tolerance"
)

const (
	classificationField = "classification"
	classificationTier  = "expectedClassification"
	defaultWidenFactor  = 2.0
)

// Options configures an Engine.
type Options struct {
	// Bands are used when the manifest has no defaultTolerances.
	Bands tolerance.Bands
	// RelativeOverride replaces every relative tolerance when set. Zero asks
	// for an exact relative band and leaves only the MinAbs floors.
	RelativeOverride *float64
	WidenFactor      float64
	Workers          int
	SuccessStatuses  []string
	Now              func() time.Time
	Logger           *slog.Logger
}

// Engine runs reconciliations.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine constructs an engine with defaults filled in.
func NewEngine(opts Options) *Engine {
	if opts.WidenFactor <= 0 {
		opts.WidenFactor = defaultWidenFactor
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "reconcile")}
}

type partOutcome struct {
	results   []FieldResult
	coercions []FieldCoercionError
}

// Run compares every manifest entry. Per-part work runs concurrently; the
// report is sorted by file then field.
func (e *Engine) Run(ctx context.Context, m *manifest.Manifest, actual *results.Set) (*Report, error) {
	started := e.opts.Now()
	bands := m.Bands()
	if len(bands) == 0 {
		bands = e.opts.Bands
	}
	if e.opts.RelativeOverride != nil {
		bands = bands.WithRelative(*e.opts.RelativeOverride)
	}

	files := m.FileNames()
	outcomes := make([]partOutcome, len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.opts.Workers)
	for i, file := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.comparePart(file, m.Files[file], actual, bands)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:           uuid.NewString(),
		GeneratedAt:     e.opts.Now().UTC().Format(time.RFC3339),
		ManifestVersion: m.Version,
		Totals:          Totals{Counts: Counts{}},
	}
	for i, file := range files {
		summary := PartSummary{File: file, Passing: true, Counts: Counts{}}
		for _, result := range outcomes[i].results {
			summary.Counts[result.Status]++
			report.Totals.Counts[result.Status]++
			if result.Status.Blocking() {
				summary.Passing = false
			}
		}
		report.Results = append(report.Results, outcomes[i].results...)
		report.CoercionErrors = append(report.CoercionErrors, outcomes[i].coercions...)
		report.Parts = append(report.Parts, summary)
		if summary.Passing {
			report.Totals.PassingParts++
		}
	}
	sort.SliceStable(report.Results, func(a, b int) bool {
		if report.Results[a].File != report.Results[b].File {
			return report.Results[a].File < report.Results[b].File
		}
		return report.Results[a].Field < report.Results[b].Field
	})

	known := make(map[string]bool, len(files))
	for _, file := range files {
		known[textutil.Fold(file)] = true
	}
	for _, record := range actual.Records() {
		if !known[textutil.Fold(record.File)] {
			report.Unexpected = append(report.Unexpected, record.File)
		}
	}
	sort.Strings(report.Unexpected)

	report.Totals.Parts = len(files)
	report.Totals.Fields = report.Totals.Counts.Total()
	report.Totals.Coverage = report.Totals.Counts.Coverage()

	for _, coercion := range report.CoercionErrors {
		logging.WarnWithContext(e.logger, "actual value is not numeric", "reconcile_field_coercion",
			logging.String(logging.FieldFile, coercion.File),
			logging.String(logging.FieldField, coercion.Field),
			logging.String("value", coercion.Value),
			logging.String(logging.FieldImpact, "field classified as a non-match"),
			logging.String(logging.FieldErrorHint, "check the pipeline output for this field"),
		)
	}
	if len(report.Unexpected) > 0 {
		logging.WarnWithContext(e.logger, "results for files not in manifest", "reconcile_unexpected_files",
			logging.Int("count", len(report.Unexpected)),
			logging.String(logging.FieldImpact, "these results were not compared"),
			logging.String(logging.FieldErrorHint, "run build-baseline --merge to add them"),
		)
	}
	e.logger.Info("reconciliation complete",
		logging.Int("parts", report.Totals.Parts),
		logging.Int("passing_parts", report.Totals.PassingParts),
		logging.Int("fields", report.Totals.Fields),
		logging.Float64("coverage", report.Totals.Coverage),
		logging.Duration("elapsed", e.opts.Now().Sub(started)),
	)
	return report, nil
}

func (e *Engine) comparePart(file string, entry *manifest.Entry, actual *results.Set, bands tolerance.Bands) partOutcome {
	var out partOutcome

	record, found := actual.Get(file)
	succeeded := found && record.Succeeded(e.opts.SuccessStatuses)
	if succeeded != entry.ShouldPass {
		observed := "absent"
		if found {
			observed = record.Status
		}
		out.results = append(out.results, FieldResult{
			File:     file,
			Field:    PartField,
			Status:   StatusFail,
			Expected: expectedOutcome(entry.ShouldPass),
			Actual:   observed,
			Note:     "run outcome does not match shouldPass",
		})
		return out
	}
	if !succeeded {
		// Expected to fail and did; there are no fields to compare.
		return out
	}

	for _, field := range entry.Fields() {
		expected, tier, _ := entry.Resolve(field)
		out.add(e.compare(file, field, string(tier), expected, record, entry, bands))
	}
	if entry.ExpectedClassification != "" {
		if _, _, defined := entry.Resolve(classificationField); !defined {
			expected := manifest.Text(entry.ExpectedClassification)
			out.add(e.compare(file, classificationField, classificationTier, expected, record, entry, bands))
		}
	}
	return out
}

func (p *partOutcome) add(result FieldResult, coercion *FieldCoercionError) {
	p.results = append(p.results, result)
	if coercion != nil {
		p.coercions = append(p.coercions, *coercion)
	}
}

func (e *Engine) compare(file, field, tier string, expected manifest.Value, record results.Record, entry *manifest.Entry, bands tolerance.Bands) (FieldResult, *FieldCoercionError) {
	actual, hasActual := record.Field(field)
	outcome, coercion := compareField(file, field, expected, actual, hasActual, bands.For(field), e.opts.WidenFactor)

	deviation, hasDeviation := entry.Deviation(field)
	if hasDeviation {
		outcome.Deviation = deviation.Status
	}
	result := FieldResult{
		File:     file,
		Field:    field,
		Status:   Classify(outcome),
		Expected: expected.String(),
		Tier:     tier,
	}
	if hasActual {
		result.Actual = actual.String()
	}
	switch {
	case coercion != nil:
		result.Note = coercion.Error()
	case hasDeviation && result.Status != StatusMatch && result.Status != StatusTolerance:
		result.Note = deviation.Reason
	}
	return result, coercion
}

func expectedOutcome(shouldPass bool) string {
	if shouldPass {
		return "success"
	}
	return "failure"
}
