package testsupport

import (
	"path/filepath"
	"testing"

	"partrecon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose paths all live in a per-test temp
// directory. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths = config.Paths{
		Export:     filepath.Join(base, "legacy", "export.txt"),
		Properties: filepath.Join(base, "legacy", "properties.json"),
		Manifest:   filepath.Join(base, "baseline", "manifest.json"),
		Results:    filepath.Join(base, "output", "results.json"),
		Report:     filepath.Join(base, "output", "comparison_report.json"),
		History:    filepath.Join(base, "baseline", "coverage_history.tsv"),
	}
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPartsDir points the listing at a parts directory under the temp root.
func WithPartsDir(rel string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.PartsDir = filepath.Join(b.baseDir, rel)
	}
}

// WithRelativeTolerance overrides the relative part of every band.
func WithRelativeTolerance(value float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Compare.RelativeTolerance = value
	}
}

// WithSQLiteHistory switches the coverage history to the SQLite backend.
func WithSQLiteHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Coverage.Backend = config.BackendSQLite
		b.cfg.Paths.History = filepath.Join(b.baseDir, "baseline", "coverage_history.db")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(filepath.Dir(cfg.Paths.Manifest))
}
