package baseline_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"partrecon/internal/baseline"
	"partrecon/internal/config"
	"partrecon/internal/filemap"
	"partrecon/internal/flatfile"
	"partrecon/internal/logging"
	"partrecon/internal/manifest"
	"partrecon/internal/results"
	"partrecon/internal/testsupport"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newBuilder(t *testing.T, files []string) *baseline.Builder {
	t.Helper()
	cfg := config.Default()
	mapper, err := filemap.New(files, filemap.Options{
		DefaultExtension: cfg.Mapping.DefaultExtension,
		SecondaryKeys:    cfg.Mapping.SecondaryKeys,
	})
	if err != nil {
		t.Fatalf("filemap.New: %v", err)
	}
	opts := baseline.OptionsFromConfig(&cfg)
	opts.Mapper = mapper
	opts.Now = func() time.Time { return fixedNow }
	builder, err := baseline.New(opts)
	if err != nil {
		t.Fatalf("baseline.New: %v", err)
	}
	return builder
}

func parse(t *testing.T, text string) *flatfile.Document {
	t.Helper()
	doc, err := flatfile.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func legacyValues(t *testing.T, entry *manifest.Entry) map[string]string {
	t.Helper()
	tier := entry.Tier(manifest.TierLegacy)
	if tier == nil {
		t.Fatal("entry has no legacy tier")
	}
	out := map[string]string{}
	for name, value := range tier.Flatten() {
		out[name] = value.String()
	}
	return out
}

func TestBuildFromExport(t *testing.T) {
	builder := newBuilder(t, nil)
	m, report, err := builder.Build(baseline.Inputs{Export: parse(t, testsupport.SampleExport)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if m.Version != manifest.InitialVersion || m.GeneratedAt != "2026-05-01T12:00:00Z" {
		t.Fatalf("version %q generatedAt %q", m.Version, m.GeneratedAt)
	}
	if diff := cmp.Diff([]string{"P100.SLDPRT"}, m.FileNames()); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A900"}, report.Excluded); diff != "" {
		t.Fatalf("top-level assembly should be excluded (-want +got):\n%s", diff)
	}

	want := map[string]string{
		"description":  "Bracket, left",
		"partType":     "PART",
		"weight":       "1.25",
		"standardCost": "4.5",
		"material":     "STEEL-10",
		"rawWeight":    "1.5",
		"blankLength":  "120",
		"blankWidth":   "40",
		"bomQuantity":  "2",
		"N120_Setup":   "0.1",
		"N120_Run":     "0.02",
		"F210_Setup":   "0.5",
		"F210_Run":     "0.01",
		"F210_Note":    "deburr all edges",
	}
	entry := m.Files["P100.SLDPRT"]
	if diff := cmp.Diff(want, legacyValues(t, entry)); diff != "" {
		t.Fatalf("legacy tier mismatch (-want +got):\n%s", diff)
	}
	if entry.Tier(manifest.TierConfirmed) != nil {
		t.Fatal("builder must not create the confirmed tier")
	}
	if !entry.ShouldPass {
		t.Fatal("new entries default to shouldPass")
	}

	if len(report.DeviationsAdded) != len(want) {
		t.Fatalf("expected %d auto deviations, got %d", len(want), len(report.DeviationsAdded))
	}
	dev, ok := entry.Deviation("N120_Setup")
	if !ok || dev.Status != manifest.DeviationNotImplemented || !dev.Auto {
		t.Fatalf("N120_Setup deviation = %+v ok=%v", dev, ok)
	}
	if len(m.DefaultTolerances) == 0 {
		t.Fatal("default tolerances should be seeded")
	}
}

func TestBuildMergePreservesOtherTiers(t *testing.T) {
	prior := manifest.New("prior")
	prior.Version = "2.3"
	entry := manifest.NewEntry(true)
	entry.Inline.Set("thickness", manifest.Number(0.2))
	entry.EnsureTier(manifest.TierLegacy).Set("weight", manifest.Number(9))
	entry.EnsureTier(manifest.TierLegacy).Set("legacyOnly", manifest.Text("kept"))
	entry.EnsureTier(manifest.TierConfirmed).Set("weight", manifest.Number(1.3))
	entry.Deviations["weight"] = manifest.Deviation{Reason: "rounding", Status: manifest.DeviationIntentional}
	prior.Files["P100.SLDPRT"] = entry
	untouched := manifest.NewEntry(false)
	untouched.Inline.Set("partType", manifest.Text("PART"))
	prior.Files["Z1.SLDPRT"] = untouched

	builder := newBuilder(t, nil)
	m, _, err := builder.Build(baseline.Inputs{
		Export: parse(t, testsupport.SampleExport),
		Prior:  prior,
		Merge:  true,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Version != "2.4" {
		t.Fatalf("version = %q, want 2.4", m.Version)
	}

	merged := m.Files["P100.SLDPRT"]
	values := legacyValues(t, merged)
	if values["weight"] != "1.25" || values["legacyOnly"] != "kept" {
		t.Fatalf("legacy merge wrong: weight=%s legacyOnly=%s", values["weight"], values["legacyOnly"])
	}
	if got, _ := merged.Tier(manifest.TierConfirmed).Lookup("weight"); got.String() != "1.3" {
		t.Fatalf("confirmed tier changed: %s", got)
	}
	if got, _ := merged.Inline.Lookup("thickness"); got.String() != "0.2" {
		t.Fatalf("inline tier changed: %s", got)
	}
	if dev := merged.Deviations["weight"]; dev.Status != manifest.DeviationIntentional || dev.Auto {
		t.Fatalf("manual deviation overwritten: %+v", dev)
	}

	z := m.Files["Z1.SLDPRT"]
	if z.Tier(manifest.TierLegacy) != nil {
		t.Fatal("entry without legacy data must not gain a legacy tier")
	}
	if prior.Files["P100.SLDPRT"].Tier(manifest.TierLegacy).Len() != 2 {
		t.Fatal("prior manifest must not be modified")
	}
}

func TestBuildWithoutMergeStartsFresh(t *testing.T) {
	prior := manifest.New("prior")
	prior.Version = "1.7"
	prior.Files["Z1.SLDPRT"] = manifest.NewEntry(true)

	logPath := filepath.Join(t.TempDir(), "baseline.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	cfg := config.Default()
	opts := baseline.OptionsFromConfig(&cfg)
	opts.Logger = logger
	builder, err := baseline.New(opts)
	if err != nil {
		t.Fatalf("baseline.New: %v", err)
	}
	m, report, err := builder.Build(baseline.Inputs{Export: parse(t, testsupport.SampleExport), Prior: prior})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Version != "1.8" {
		t.Fatalf("version = %q, want 1.8", m.Version)
	}
	if _, ok := m.Files["Z1.SLDPRT"]; ok {
		t.Fatal("fresh build should not carry prior entries")
	}
	if report.Discarded != 1 {
		t.Fatalf("Discarded = %d, want 1", report.Discarded)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), `"event_type":"baseline_prior_discarded"`) {
		t.Fatalf("expected a discard warning, got %s", content)
	}

	_, report, err = builder.Build(baseline.Inputs{Export: parse(t, testsupport.SampleExport), Prior: prior, Merge: true})
	if err != nil {
		t.Fatalf("Build with merge: %v", err)
	}
	if report.Discarded != 0 {
		t.Fatalf("merge Discarded = %d, want 0", report.Discarded)
	}
}

func TestBuildDeviationsFollowActualResults(t *testing.T) {
	prior := manifest.New("prior")
	prior.Version = "1.0"
	entry := manifest.NewEntry(true)
	entry.Deviations["weight"] = manifest.Deviation{Reason: "old gap", Status: manifest.DeviationNotImplemented, Auto: true}
	entry.Deviations["material"] = manifest.Deviation{Reason: "manual", Status: manifest.DeviationNotImplemented}
	prior.Files["P100.SLDPRT"] = entry

	actual, err := results.Decode([]byte(`[{"file":"P100.SLDPRT","status":"ok",
		"weight":1.25,"material":"STEEL-10","N120_Setup":0.1,"description":"Bracket, left"}]`))
	if err != nil {
		t.Fatalf("results.Decode: %v", err)
	}

	builder := newBuilder(t, nil)
	m, report, err := builder.Build(baseline.Inputs{
		Export: parse(t, testsupport.SampleExport),
		Prior:  prior,
		Merge:  true,
		Actual: actual,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := m.Files["P100.SLDPRT"]
	for _, field := range []string{"N120_Setup", "description"} {
		if _, ok := got.Deviation(field); ok {
			t.Fatalf("%s is produced by the pipeline and needs no deviation", field)
		}
	}
	if _, ok := got.Deviation("N120_Run"); !ok {
		t.Fatal("N120_Run is not produced and needs a deviation")
	}
	if _, ok := got.Deviation("weight"); ok {
		t.Fatal("auto deviation for weight should be pruned")
	}
	if _, ok := got.Deviation("material"); !ok {
		t.Fatal("manual deviation must never be pruned")
	}
	want := []baseline.FieldRef{{File: "P100.SLDPRT", Field: "weight"}}
	if diff := cmp.Diff(want, report.DeviationsPruned); diff != "" {
		t.Fatalf("pruned mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPropertiesAndMapping(t *testing.T) {
	dump, err := baseline.DecodeProperties([]byte(`{
		"P100": {"Thickness": 0.104567, "Finish Code": "ZP", "flag": true},
		"X5.SLDPRT": {"Weight": 3},
		"Q7": {"Weight": 1}
	}`))
	if err != nil {
		t.Fatalf("DecodeProperties: %v", err)
	}
	builder := newBuilder(t, []string{"P100-REV-A.SLDPRT", "P100-REV-B.SLDPRT"})
	m, report, err := builder.Build(baseline.Inputs{Export: parse(t, testsupport.SampleExport), Properties: dump})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	values := legacyValues(t, m.Files["P100-REV-A.SLDPRT"])
	if values["thickness"] != "0.1046" || values["finish_Code"] != "ZP" {
		t.Fatalf("properties not merged: thickness=%s finish_Code=%s", values["thickness"], values["finish_Code"])
	}
	if values["flag"] != "true" {
		t.Fatalf("boolean property = %q, want true", values["flag"])
	}
	if got := legacyValues(t, m.Files["X5.SLDPRT"]); got["weight"] != "3" {
		t.Fatalf("file-keyed properties not merged: %v", got)
	}
	if diff := cmp.Diff([]string{"Q7"}, report.Unmapped); diff != "" {
		t.Fatalf("unmapped mismatch (-want +got):\n%s", diff)
	}
	if len(report.Ambiguous) != 1 || report.Ambiguous[0].Key != "P100" {
		t.Fatalf("expected P100 to be flagged ambiguous, got %+v", report.Ambiguous)
	}
}

func TestBuildNumericStringProperties(t *testing.T) {
	dump, err := baseline.DecodeProperties([]byte(`{
		"P100.SLDPRT": {"Thickness": "0.10500", "Weight": " 2.34567 ", "Finish": "ZP", "Gauge": "NaN"}
	}`))
	if err != nil {
		t.Fatalf("DecodeProperties: %v", err)
	}
	builder := newBuilder(t, nil)
	m, _, err := builder.Build(baseline.Inputs{Export: parse(t, testsupport.SampleExport), Properties: dump})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tier := m.Files["P100.SLDPRT"].Tier(manifest.TierLegacy)
	tests := []struct {
		field   string
		want    string
		numeric bool
	}{
		{"thickness", "0.105", true},
		{"weight", "2.346", true},
		{"finish", "ZP", false},
		{"gauge", "NaN", false},
	}
	for _, tt := range tests {
		value, ok := tier.Scalars[tt.field]
		if !ok {
			t.Fatalf("%s not merged", tt.field)
		}
		if _, numeric := value.Float(); numeric != tt.numeric || value.String() != tt.want {
			t.Errorf("%s = %q numeric=%v, want %q numeric=%v", tt.field, value.String(), numeric, tt.want, tt.numeric)
		}
	}
}

func TestBuildReportsAnomaliesAndCoercion(t *testing.T) {
	export := `DECL(IM) IM-KEY IM-WEIGHT
END
"" 2.0
P1 heavy

DECL(QQ) Q-KEY
END
Q1
`
	builder := newBuilder(t, nil)
	m, report, err := builder.Build(baseline.Inputs{Export: parse(t, export)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wantAnomalies := []baseline.Anomaly{
		{Section: "IM", Line: 3, Reason: "no part key"},
		{Section: "QQ", Line: 8, Reason: "unrecognized section"},
	}
	if diff := cmp.Diff(wantAnomalies, report.Anomalies); diff != "" {
		t.Fatalf("anomalies mismatch (-want +got):\n%s", diff)
	}
	if len(report.CoercionErrors) != 1 || report.CoercionErrors[0].Value != "heavy" {
		t.Fatalf("coercion errors = %+v", report.CoercionErrors)
	}
	legacy := m.Files["P1.SLDPRT"].Tier(manifest.TierLegacy)
	if legacy == nil || legacy.Len() != 0 {
		t.Fatalf("part with legacy data but no fields gets an empty tier, got %+v", legacy)
	}
}

func TestNewRejectsUnknownUnit(t *testing.T) {
	if _, err := baseline.New(baseline.Options{SetupUnit: "fortnights"}); err == nil {
		t.Fatal("expected unit error")
	}
}
