package config

const (
	defaultExportPath       = "legacy/export.txt"
	defaultManifestPath     = "baseline/manifest.json"
	defaultResultsPath      = "output/results.json"
	defaultReportPath       = "output/comparison_report.json"
	defaultHistoryPath      = "baseline/coverage_history.tsv"
	defaultWidenFactor      = 2.0
	defaultWorkers          = 4
	defaultUnitSetup        = UnitMinutes
	defaultUnitRun          = UnitMinutes
	defaultExtension        = ".SLDPRT"
	defaultCoverageBackend  = BackendTSV
	defaultCoverageWindow   = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultDescription      = "Gold standard baseline for part reconciliation"
	defaultClass            = "default"
	defaultRoundingLength   = 4
	defaultRoundingWeight   = 3
	defaultRoundingCost     = 2
	defaultRoundingTime     = 4
	defaultRoundingCount    = 3
	defaultSecondaryPattern = "*-DUP"
)

// Time units accepted in [units].
const (
	UnitSeconds = "seconds"
	UnitMinutes = "minutes"
	UnitHours   = "hours"
)

// Coverage history backends.
const (
	BackendTSV    = "tsv"
	BackendSQLite = "sqlite"
)

func defaultTolerances() map[string]Band {
	return map[string]Band{
		defaultClass: {Relative: 0.01, MinAbs: 0.001},
		"length":     {Relative: 0.01, MinAbs: 0.001},
		"weight":     {Relative: 0.02, MinAbs: 0.01},
		"cost":       {Relative: 0.05, MinAbs: 0.01},
		"time":       {Relative: 0.05, MinAbs: 0.001},
		"count":      {Relative: 0, MinAbs: 0.001},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Export:   defaultExportPath,
			Manifest: defaultManifestPath,
			Results:  defaultResultsPath,
			Report:   defaultReportPath,
			History:  defaultHistoryPath,
		},
		Compare: Compare{
			WidenFactor:     defaultWidenFactor,
			Workers:         defaultWorkers,
			SuccessStatuses: []string{"success", "ok", "pass", "passed"},
		},
		Tolerances: defaultTolerances(),
		Rounding: Rounding{
			Length: defaultRoundingLength,
			Weight: defaultRoundingWeight,
			Cost:   defaultRoundingCost,
			Time:   defaultRoundingTime,
			Count:  defaultRoundingCount,
		},
		Units: Units{
			ExportSetup: defaultUnitSetup,
			ExportRun:   defaultUnitRun,
		},
		Mapping: Mapping{
			Include:          []string{"**/*.{SLDPRT,SLDASM,sldprt,sldasm}"},
			SecondaryKeys:    []string{defaultSecondaryPattern},
			DefaultExtension: defaultExtension,
		},
		Baseline: Baseline{
			Description: defaultDescription,
		},
		Coverage: Coverage{
			Backend: defaultCoverageBackend,
			Window:  defaultCoverageWindow,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
