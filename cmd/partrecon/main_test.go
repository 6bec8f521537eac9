package main

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"partrecon/internal/apperr"
	"partrecon/internal/coverage"
	"partrecon/internal/manifest"
	"partrecon/internal/reconcile"
	"partrecon/internal/testsupport"
)

const (
	resultsWeightOnly  = `[{"file": "P100.SLDPRT", "status": "success", "weight": 1.25}]`
	resultsWithRouting = `{"results": [{"file": "parts/P100.SLDPRT", "status": "Success", "weight": 1.25, "routing": {"N120": {"setup": 0.1, "run": 0.02}}}]}`
	resultsWrongWeight = `[{"file": "P100.SLDPRT", "status": "success", "weight": 2.5}]`
)

func buildBaseline(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, _, err := runCLI(t, append([]string{"build-baseline"}, args...), env.configPath)
	if err != nil {
		t.Fatalf("build-baseline: %v", err)
	}
	return out
}

func TestParseCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"parse", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var summary parseSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode parse output: %v\n%s", err, out)
	}

	var codes []string
	for _, section := range summary.Stats.Sections {
		codes = append(codes, section.Code)
	}
	if diff := cmp.Diff([]string{"IM", "PS", "RT", "RN"}, codes); diff != "" {
		t.Fatalf("section codes mismatch (-want +got):\n%s", diff)
	}
	if summary.Stats.Sections[1].Blocks != 2 {
		t.Fatalf("PS blocks = %d, want 2", summary.Stats.Sections[1].Blocks)
	}
	if summary.Records != 7 || summary.PartKeys != 2 || summary.Unresolved != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestParseCommandText(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"parse", env.cfg.Paths.Export}, env.configPath)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	requireContains(t, out, "== Export ==")
	requireContains(t, out, "Part keys")
	requireContains(t, out, "RN")
}

func TestParseCommandMissingExport(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"parse", env.path("missing.txt")}, env.configPath)
	if !errors.Is(err, apperr.ErrMissingInput) {
		t.Fatalf("expected missing input error, got %v", err)
	}
}

func TestBuildBaselineWritesManifest(t *testing.T) {
	env := setupCLITestEnv(t)

	out := buildBaseline(t, env)
	requireContains(t, out, "Wrote manifest version 1.0")
	requireContains(t, out, "(default extension)")

	m, err := manifest.Load(env.cfg.Paths.Manifest)
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	if diff := cmp.Diff([]string{"P100.SLDPRT"}, m.FileNames()); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}

	out = buildBaseline(t, env, "--merge")
	requireContains(t, out, "Wrote manifest version 1.1")
	if _, err := os.Stat(env.cfg.Paths.Manifest + ".bak"); err != nil {
		t.Fatalf("expected backup of previous manifest: %v", err)
	}
	requireContains(t, out, "Dropped entries:     [OK] 0")

	out = buildBaseline(t, env)
	requireContains(t, out, "Dropped entries:     [WARN] 1")
}

func TestBuildBaselineDryRun(t *testing.T) {
	env := setupCLITestEnv(t)

	out := buildBaseline(t, env, "--dry-run")
	requireContains(t, out, "Dry run")
	if _, err := os.Stat(env.cfg.Paths.Manifest); !os.IsNotExist(err) {
		t.Fatalf("dry run must not write the manifest, stat err = %v", err)
	}
}

func TestBuildBaselineUsesPartsDir(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.Touch(t, env.path("parts"), "sub/P100.SLDPRT", "sub/readme.txt")

	out := buildBaseline(t, env, "--parts-dir", env.path("parts"))
	requireContains(t, out, "(file listing)")

	m, err := manifest.Load(env.cfg.Paths.Manifest)
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	if _, ok := m.Entry("P100.SLDPRT"); !ok {
		t.Fatalf("expected P100.SLDPRT entry, got %v", m.FileNames())
	}
}

func TestBuildBaselineRejectsBothListingSources(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"build-baseline", "--parts-dir", env.path("parts"), "--listing", env.path("list.txt")}, env.configPath)
	if err == nil {
		t.Fatal("expected error for --parts-dir with --listing")
	}
}

func TestCompareJSONReport(t *testing.T) {
	env := setupCLITestEnv(t)
	buildBaseline(t, env)
	env.writeResults(t, resultsWithRouting)

	out, _, err := runCLI(t, []string{"compare", "--format", "json"}, env.configPath)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	var report reconcile.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	counts := report.Totals.Counts
	if counts[reconcile.StatusMatch] != 3 || counts[reconcile.StatusNotImpl] != 11 {
		t.Fatalf("counts = %v", counts)
	}
	if !report.Passed() || report.ManifestVersion != manifest.InitialVersion {
		t.Fatalf("report = %+v", report.Totals)
	}

	saved, err := reconcile.LoadReport(env.cfg.Paths.Report)
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if saved.RunID != report.RunID {
		t.Fatalf("saved run %q, printed run %q", saved.RunID, report.RunID)
	}
}

func TestCompareFailsOnRegression(t *testing.T) {
	env := setupCLITestEnv(t)
	buildBaseline(t, env)
	env.writeResults(t, resultsWrongWeight)

	out, _, err := runCLI(t, []string{"compare"}, env.configPath)
	if !errors.Is(err, apperr.ErrReconciliationFailed) {
		t.Fatalf("expected reconciliation failure, got %v", err)
	}
	requireContains(t, out, "[ERROR] failed")
	requireContains(t, out, "weight")
	requireContains(t, out, "2.5")
}

func TestCompareToleranceFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	buildBaseline(t, env)
	env.writeResults(t, `[{"file": "P100.SLDPRT", "status": "success", "weight": 1.32}]`)

	// 1.32 vs 1.25 is 5.6% off: outside the widened 4% weight band, inside 6%.
	if _, _, err := runCLI(t, []string{"compare"}, env.configPath); err == nil {
		t.Fatal("expected failure with the configured weight band")
	}
	out, _, err := runCLI(t, []string{"compare", "--tolerance", "0.06"}, env.configPath)
	if err != nil {
		t.Fatalf("compare --tolerance: %v", err)
	}
	requireContains(t, out, "[OK] passed")

	// 1.27 vs 1.25 sits inside the 2% weight band but outside its 0.01 floor.
	env.writeResults(t, `[{"file": "P100.SLDPRT", "status": "success", "weight": 1.27}]`)
	if _, _, err := runCLI(t, []string{"compare"}, env.configPath); err != nil {
		t.Fatalf("compare with the configured weight band: %v", err)
	}
	_, _, err = runCLI(t, []string{"compare", "--tolerance", "0"}, env.configPath)
	if !errors.Is(err, apperr.ErrReconciliationFailed) {
		t.Fatalf("expected --tolerance 0 to fail, got %v", err)
	}
}

func TestCompareMissingManifest(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeResults(t, resultsWeightOnly)

	_, _, err := runCLI(t, []string{"compare"}, env.configPath)
	if !errors.Is(err, apperr.ErrMissingInput) {
		t.Fatalf("expected missing input error, got %v", err)
	}
}

func TestTrackCoverageTrend(t *testing.T) {
	env := setupCLITestEnv(t)
	buildBaseline(t, env)

	env.writeResults(t, resultsWeightOnly)
	if _, _, err := runCLI(t, []string{"compare"}, env.configPath); err != nil {
		t.Fatalf("first compare: %v", err)
	}
	out, _, err := runCLI(t, []string{"track-coverage"}, env.configPath)
	if err != nil {
		t.Fatalf("first track-coverage: %v", err)
	}
	requireContains(t, out, "Recorded run")
	requireContains(t, out, "need at least two runs")

	if _, _, err := runCLI(t, []string{"track-coverage"}, env.configPath); !errors.Is(err, coverage.ErrDuplicateRun) {
		t.Fatalf("expected duplicate run error, got %v", err)
	}

	env.writeResults(t, resultsWithRouting)
	if _, _, err := runCLI(t, []string{"compare", "--track"}, env.configPath); err != nil {
		t.Fatalf("second compare: %v", err)
	}
	out, _, err = runCLI(t, []string{"track-coverage", "--no-append"}, env.configPath)
	if err != nil {
		t.Fatalf("track-coverage --no-append: %v", err)
	}
	requireNotContains(t, out, "Recorded run")
	requireContains(t, out, "[OK] +2")
	requireContains(t, out, "[OK] -2")

	rows, err := testsupport.MustOpenHistory(t, env.cfg).Window(t.Context(), 0)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(rows) != 2 || rows[0].Match != 1 || rows[1].Match != 3 {
		t.Fatalf("history rows = %+v", rows)
	}
}

func TestTrackCoverageSQLiteBackend(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithSQLiteHistory())
	buildBaseline(t, env)
	env.writeResults(t, resultsWeightOnly)

	if _, _, err := runCLI(t, []string{"compare", "--track"}, env.configPath); err != nil {
		t.Fatalf("compare --track: %v", err)
	}
	out, _, err := runCLI(t, []string{"track-coverage", "--no-append", "--window", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("track-coverage: %v", err)
	}
	requireContains(t, out, "Runs:")
	if _, err := os.Stat(env.cfg.Paths.History); err != nil {
		t.Fatalf("expected sqlite history file: %v", err)
	}
}
