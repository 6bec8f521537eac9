package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCompare()
	c.normalizeTolerances()
	c.normalizeUnits()
	c.normalizeMapping()
	c.normalizeCoverage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("PARTRECON_MANIFEST"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Manifest = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("PARTRECON_RESULTS"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Results = strings.TrimSpace(value)
	}

	targets := []struct {
		key   string
		value *string
	}{
		{"paths.export", &c.Paths.Export},
		{"paths.properties", &c.Paths.Properties},
		{"paths.manifest", &c.Paths.Manifest},
		{"paths.results", &c.Paths.Results},
		{"paths.parts_dir", &c.Paths.PartsDir},
		{"paths.listing", &c.Paths.Listing},
		{"paths.report", &c.Paths.Report},
		{"paths.history", &c.Paths.History},
		{"logging.file", &c.Logging.File},
	}
	for _, target := range targets {
		expanded, err := expandPath(strings.TrimSpace(*target.value))
		if err != nil {
			return fmt.Errorf("%s: %w", target.key, err)
		}
		*target.value = expanded
	}
	return nil
}

func (c *Config) normalizeCompare() {
	if c.Compare.WidenFactor == 0 {
		c.Compare.WidenFactor = defaultWidenFactor
	}
	if c.Compare.Workers <= 0 {
		c.Compare.Workers = 1
	}
	statuses := make([]string, 0, len(c.Compare.SuccessStatuses))
	for _, status := range c.Compare.SuccessStatuses {
		if normalized := strings.ToLower(strings.TrimSpace(status)); normalized != "" {
			statuses = append(statuses, normalized)
		}
	}
	if len(statuses) == 0 {
		statuses = Default().Compare.SuccessStatuses
	}
	c.Compare.SuccessStatuses = statuses
}

func (c *Config) normalizeTolerances() {
	normalized := make(map[string]Band, len(c.Tolerances))
	for class, band := range c.Tolerances {
		normalized[strings.ToLower(strings.TrimSpace(class))] = band
	}
	for class, band := range defaultTolerances() {
		if _, ok := normalized[class]; !ok {
			normalized[class] = band
		}
	}
	c.Tolerances = normalized
}

func (c *Config) normalizeUnits() {
	c.Units.ExportSetup = canonicalUnit(c.Units.ExportSetup, defaultUnitSetup)
	c.Units.ExportRun = canonicalUnit(c.Units.ExportRun, defaultUnitRun)
}

func canonicalUnit(value, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return fallback
	case "s", "sec", "secs", "second", "seconds":
		return UnitSeconds
	case "m", "min", "mins", "minute", "minutes":
		return UnitMinutes
	case "h", "hr", "hrs", "hour", "hours":
		return UnitHours
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) normalizeMapping() {
	c.Mapping.Include = trimList(c.Mapping.Include)
	c.Mapping.SecondaryKeys = trimList(c.Mapping.SecondaryKeys)
	ext := strings.TrimSpace(c.Mapping.DefaultExtension)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Mapping.DefaultExtension = ext
}

func (c *Config) normalizeCoverage() {
	c.Coverage.Backend = strings.ToLower(strings.TrimSpace(c.Coverage.Backend))
	if c.Coverage.Backend == "" {
		c.Coverage.Backend = defaultCoverageBackend
	}
	if c.Coverage.Window <= 0 {
		c.Coverage.Window = defaultCoverageWindow
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
