// Package baseline builds the gold-standard manifest from legacy data.
//
// Legacy export records are grouped per part key, converted through the field
// mapping tables and written into the vbaBaseline tier of the entry for the
// part's CAD file. Other tiers are never touched. Fields the new pipeline
// does not yet produce get an automatic NOT_IMPLEMENTED deviation so that
// reconciliation reports them as known gaps instead of regressions.
package baseline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"partrecon/internal/config"
	"partrecon/internal/filemap"
	"partrecon/internal/flatfile"
	"partrecon/internal/logging"
	"partrecon/internal/manifest"
	"partrecon/internal/partkey"
	"partrecon/internal/results"
	"partrecon/internal/tolerance"
)

const autoDeviationReason = "not produced by the new pipeline"

// Options configures a Builder.
type Options struct {
	Resolver *partkey.Resolver

	// Mapper resolves keys to file names. When nil, a mapper without a
	// listing is built from DefaultExtension and SecondaryKeys.
	Mapper           *filemap.Mapper
	DefaultExtension string
	SecondaryKeys    []string

	// SetupUnit and RunUnit are the legacy routing time units.
	SetupUnit string
	RunUnit   string

	// Precision returns decimal places per quantity class. Nil disables rounding.
	Precision   func(tolerance.Class) int
	Tolerances  map[string]tolerance.Band
	Description string
	Now         func() time.Time
	Logger      *slog.Logger
}

// OptionsFromConfig derives builder options from configuration. The mapper
// is left for the caller since it depends on the file listing.
func OptionsFromConfig(cfg *config.Config) Options {
	bands := make(map[string]tolerance.Band, len(cfg.Tolerances))
	for class, band := range cfg.Tolerances {
		bands[class] = tolerance.Band{Relative: band.Relative, MinAbs: band.MinAbs}
	}
	return Options{
		Resolver:  partkey.Default(),
		SetupUnit: cfg.Units.ExportSetup,
		RunUnit:   cfg.Units.ExportRun,
		Precision: func(class tolerance.Class) int {
			return cfg.Precision(string(class))
		},
		Tolerances:       bands,
		Description:      cfg.Baseline.Description,
		DefaultExtension: cfg.Mapping.DefaultExtension,
		SecondaryKeys:    cfg.Mapping.SecondaryKeys,
	}
}

// Inputs are the sources of one build.
type Inputs struct {
	Export     *flatfile.Document
	Properties PropertyDump
	// Prior is the existing manifest. With Merge set its entries are kept and
	// updated; otherwise only its version is carried forward.
	Prior *manifest.Manifest
	Merge bool
	// Actual decides which fields the new pipeline already fills. Nil falls
	// back to each entry's csharpExpected tier.
	Actual *results.Set
}

// FieldRef names one field of one manifest file.
type FieldRef struct {
	File  string `json:"file"`
	Field string `json:"field"`
}

// CoercionError is a legacy value that should have been numeric.
type CoercionError struct {
	Part   string `json:"part"`
	Source string `json:"source"`
	Value  string `json:"value"`
}

func (e CoercionError) Error() string {
	return fmt.Sprintf("part %s: %s value %q is not numeric", e.Part, e.Source, e.Value)
}

// Report summarizes a build.
type Report struct {
	Version          string                      `json:"version"`
	Parts            int                         `json:"parts"`
	Files            int                         `json:"files"`
	Updated          []string                    `json:"updated"`
	Unmapped         []string                    `json:"unmapped"`
	Ambiguous        []filemap.AmbiguousKeyError `json:"ambiguous"`
	Excluded         []string                    `json:"excluded"`
	Anomalies        []Anomaly                   `json:"anomalies"`
	DeviationsAdded  []FieldRef                  `json:"deviationsAdded"`
	DeviationsPruned []FieldRef                  `json:"deviationsPruned"`
	CoercionErrors   []CoercionError             `json:"coercionErrors"`
	Discarded        int                         `json:"discarded"`
}

// Builder merges legacy data into a manifest.
type Builder struct {
	opts      Options
	setupRate float64
	runRate   float64
	logger    *slog.Logger
}

// New validates options and returns a builder.
func New(opts Options) (*Builder, error) {
	if opts.Resolver == nil {
		opts.Resolver = partkey.Default()
	}
	if opts.Mapper == nil {
		mapper, err := filemap.New(nil, filemap.Options{
			DefaultExtension: opts.DefaultExtension,
			SecondaryKeys:    opts.SecondaryKeys,
			Logger:           opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		opts.Mapper = mapper
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	setup, err := hoursPerUnit(opts.SetupUnit)
	if err != nil {
		return nil, fmt.Errorf("setup unit: %w", err)
	}
	run, err := hoursPerUnit(opts.RunUnit)
	if err != nil {
		return nil, fmt.Errorf("run unit: %w", err)
	}
	return &Builder{
		opts:      opts,
		setupRate: setup,
		runRate:   run,
		logger:    logging.NewComponentLogger(opts.Logger, "baseline"),
	}, nil
}

// Build produces a new manifest. Inputs are not modified.
func (b *Builder) Build(in Inputs) (*manifest.Manifest, Report, error) {
	var report Report

	out := manifest.New(b.opts.Description)
	if in.Prior != nil {
		if in.Merge {
			out = in.Prior.Clone()
		} else {
			out.Version = in.Prior.Version
			out.Description = in.Prior.Description
			out.DefaultTolerances = in.Prior.DefaultTolerances
			report.Discarded = len(in.Prior.Files)
		}
	}
	if report.Discarded > 0 {
		logging.WarnWithContext(b.logger, "rebuilding without merge drops prior entries", "baseline_prior_discarded",
			logging.Int("entries", report.Discarded),
			logging.Alert("hand-entered tiers and deviations are not carried over"),
			logging.String(logging.FieldImpact, "only the .bak copy keeps the prior expectations"),
			logging.String(logging.FieldErrorHint, "rerun build-baseline with --merge to keep them"),
		)
	}
	if strings.TrimSpace(out.Description) == "" {
		out.Description = b.opts.Description
	}

	legacy := map[string]*manifest.FieldSet{}
	if in.Export != nil {
		g := groupRecords(in.Export, b.opts.Resolver)
		report.Anomalies = g.anomalies
		report.Parts = len(g.parts)

		mapping := b.opts.Mapper.Map(g.keys(), g.topLevel)
		report.Unmapped = mapping.Unmapped
		report.Ambiguous = mapping.Ambiguous
		report.Excluded = mapping.Excluded

		for _, key := range g.keys() {
			file, ok := mapping.Mapped[key]
			if !ok {
				continue
			}
			set, errs := b.legacyFields(g.parts[key])
			report.CoercionErrors = append(report.CoercionErrors, errs...)
			mergeInto(legacy, file, set)
		}
		b.applyProperties(in.Properties, g, mapping, legacy, &report)
	} else {
		b.applyProperties(in.Properties, nil, filemap.Mapping{}, legacy, &report)
	}

	for _, err := range report.CoercionErrors {
		logging.WarnWithContext(b.logger, "legacy value is not numeric", "baseline_coercion",
			logging.String(logging.FieldPart, err.Part),
			logging.String(logging.FieldField, err.Source),
			logging.String("value", err.Value),
			logging.String(logging.FieldImpact, "field left out of the baseline"),
			logging.String(logging.FieldErrorHint, "fix the value in the legacy export"),
		)
	}

	files := make([]string, 0, len(legacy))
	for file := range legacy {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		entry, ok := out.Files[file]
		if !ok {
			entry = manifest.NewEntry(true)
			out.Files[file] = entry
		}
		tier := entry.EnsureTier(manifest.TierLegacy)
		for name, value := range legacy[file].Scalars {
			tier.Set(name, value)
		}
		for wc, op := range legacy[file].Routing {
			tier.SetRouting(wc, op)
		}
		report.Updated = append(report.Updated, file)
		report.DeviationsAdded = append(report.DeviationsAdded, b.bootstrapDeviations(file, entry, in.Actual)...)
	}
	report.DeviationsPruned = pruneDeviations(out, in.Actual)

	if len(out.DefaultTolerances) == 0 && len(b.opts.Tolerances) > 0 {
		out.DefaultTolerances = make(map[string]tolerance.Band, len(b.opts.Tolerances))
		for class, band := range b.opts.Tolerances {
			out.DefaultTolerances[class] = band
		}
	}
	if in.Prior == nil {
		out.GeneratedAt = b.opts.Now().UTC().Format(time.RFC3339)
	} else if err := out.BumpVersion(b.opts.Now()); err != nil {
		return nil, report, err
	}
	report.Version = out.Version
	report.Files = len(out.Files)

	b.logger.Info("baseline built",
		logging.String("version", out.Version),
		logging.Bool("merge", in.Merge),
		logging.Int("parts", report.Parts),
		logging.Int("updated", len(report.Updated)),
		logging.Int("unmapped", len(report.Unmapped)),
		logging.Int("deviations_added", len(report.DeviationsAdded)),
		logging.Int("deviations_pruned", len(report.DeviationsPruned)),
	)
	return out, report, nil
}

// legacyFields converts the records of one part into a field set. A part
// with records but no convertible values yields an empty set.
func (b *Builder) legacyFields(p *legacyPart) (*manifest.FieldSet, []CoercionError) {
	set := manifest.NewFieldSet()
	var errs []CoercionError

	apply := func(record flatfile.Record, table []FieldMap, sum bool) {
		for _, fm := range table {
			raw, ok := record.Get(fm.Source)
			raw = strings.TrimSpace(raw)
			if !ok || raw == "" {
				continue
			}
			if !fm.Numeric {
				if _, exists := set.Scalars[fm.Target]; !exists {
					set.Set(fm.Target, manifest.Text(raw))
				}
				continue
			}
			number, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				errs = append(errs, CoercionError{Part: p.key, Source: fm.Source, Value: raw})
				continue
			}
			if prev, exists := set.Scalars[fm.Target]; exists {
				if !sum {
					continue
				}
				if f, ok := prev.Float(); ok {
					number += f
				}
			}
			set.Set(fm.Target, b.round(fm.Target, number))
		}
	}

	for _, record := range p.items {
		apply(record, ItemMasterFields, false)
	}
	for _, record := range p.materials {
		apply(record, MaterialFields, false)
	}
	for _, record := range p.bom {
		apply(record, BOMFields, true)
	}

	opCenters := map[string]string{}
	for _, record := range p.routing {
		wc := trimmed(record, fieldWorkCtr)
		if wc == "" {
			continue
		}
		if op := trimmed(record, fieldOpNum); op != "" {
			opCenters[op] = wc
		}
		setup, err := b.hours(p.key, record, fieldSetup, b.setupRate)
		if err != nil {
			errs = append(errs, *err)
		}
		run, err := b.hours(p.key, record, fieldRun, b.runRate)
		if err != nil {
			errs = append(errs, *err)
		}
		op := set.Routing[wc]
		op.Setup = manifest.Round(op.Setup+setup, b.precision(tolerance.ClassTime))
		op.Run = manifest.Round(op.Run+run, b.precision(tolerance.ClassTime))
		set.SetRouting(wc, op)
	}

	for _, record := range p.notes {
		text := trimmed(record, fieldNoteText)
		if text == "" {
			continue
		}
		opNum := trimmed(record, fieldNoteOp)
		name := "OP" + opNum + manifest.NoteSuffix
		if wc, ok := opCenters[opNum]; ok {
			name = wc + manifest.NoteSuffix
		}
		if prev, exists := set.Scalars[name]; exists {
			text = prev.String() + "; " + text
		}
		set.Set(name, manifest.Text(text))
	}
	return set, errs
}

func (b *Builder) hours(part string, record flatfile.Record, field string, rate float64) (float64, *CoercionError) {
	raw := trimmed(record, field)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &CoercionError{Part: part, Source: field, Value: raw}
	}
	return value * rate, nil
}

func (b *Builder) precision(class tolerance.Class) int {
	if b.opts.Precision == nil {
		return -1
	}
	return b.opts.Precision(class)
}

func (b *Builder) round(field string, value float64) manifest.Value {
	return manifest.Number(value).Round(b.precision(tolerance.ClassOf(field)))
}

// applyProperties merges the property dump. Keys that name a grouped part
// follow that part's mapping; keys with an extension are file names; other
// keys go through the mapper.
func (b *Builder) applyProperties(dump PropertyDump, g *grouping, mapping filemap.Mapping, legacy map[string]*manifest.FieldSet, report *Report) {
	for _, key := range dump.Keys() {
		var file string
		switch {
		case g != nil && g.parts[key] != nil:
			mapped, ok := mapping.Mapped[key]
			if !ok {
				continue
			}
			file = mapped
		case filepath.Ext(key) != "":
			file = key
		default:
			if g != nil && g.topLevel[key] {
				continue
			}
			if b.opts.Mapper.IsSecondary(key) {
				continue
			}
			mapped, ambiguous, ok := b.opts.Mapper.Lookup(key)
			if !ok {
				report.Unmapped = append(report.Unmapped, key)
				continue
			}
			if ambiguous != nil {
				report.Ambiguous = append(report.Ambiguous, *ambiguous)
			}
			file = mapped
		}
		set := manifest.NewFieldSet()
		for name, value := range dump[key] {
			value = value.Numeric()
			if _, isNumber := value.Float(); isNumber {
				value = value.Round(b.precision(tolerance.ClassOf(name)))
			}
			set.Set(name, value)
		}
		mergeInto(legacy, file, set)
	}
	sort.Strings(report.Unmapped)
}

// bootstrapDeviations adds an automatic NOT_IMPLEMENTED deviation for every
// legacy field the new pipeline does not produce. Existing deviations win.
func (b *Builder) bootstrapDeviations(file string, entry *manifest.Entry, actual *results.Set) []FieldRef {
	record, hasRecord := actual.Get(file)
	confirmed := entry.Tier(manifest.TierConfirmed)

	var added []FieldRef
	for _, field := range entry.Tier(manifest.TierLegacy).Names() {
		if _, exists := entry.Deviations[field]; exists {
			continue
		}
		var provided bool
		if hasRecord {
			provided = record.Provides(field)
		} else {
			_, provided = confirmed.Lookup(field)
		}
		if provided {
			continue
		}
		entry.Deviations[field] = manifest.Deviation{
			Reason: autoDeviationReason,
			Status: manifest.DeviationNotImplemented,
			Auto:   true,
		}
		added = append(added, FieldRef{File: file, Field: field})
	}
	return added
}

// pruneDeviations removes automatic deviations for fields the actual results
// now provide. Manual deviations are kept.
func pruneDeviations(m *manifest.Manifest, actual *results.Set) []FieldRef {
	if actual == nil {
		return nil
	}
	var pruned []FieldRef
	for _, file := range m.FileNames() {
		record, ok := actual.Get(file)
		if !ok {
			continue
		}
		entry := m.Files[file]
		for _, field := range manifest.SortedDeviationFields(entry) {
			dev := entry.Deviations[field]
			if dev.Auto && record.Provides(field) {
				delete(entry.Deviations, field)
				pruned = append(pruned, FieldRef{File: file, Field: field})
			}
		}
	}
	return pruned
}

func mergeInto(legacy map[string]*manifest.FieldSet, file string, set *manifest.FieldSet) {
	target, ok := legacy[file]
	if !ok {
		legacy[file] = set
		return
	}
	for name, value := range set.Scalars {
		target.Set(name, value)
	}
	for wc, op := range set.Routing {
		target.SetRouting(wc, op)
	}
}

func trimmed(record flatfile.Record, field string) string {
	return strings.TrimSpace(record.Value(field))
}
