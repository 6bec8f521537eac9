package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input and output file locations.
type Paths struct {
	Export     string `toml:"export"`
	Properties string `toml:"properties"`
	Manifest   string `toml:"manifest"`
	Results    string `toml:"results"`
	PartsDir   string `toml:"parts_dir"`
	Listing    string `toml:"listing"`
	Report     string `toml:"report"`
	History    string `toml:"history"`
}

// Band is a tolerance band for one quantity class.
type Band struct {
	Relative float64 `toml:"relative"`
	MinAbs   float64 `toml:"min_abs"`
}

// Compare contains reconciliation settings.
type Compare struct {
	// RelativeTolerance overrides the relative part of every class band when
	// greater than zero. The --tolerance flag writes here.
	RelativeTolerance float64 `toml:"relative_tolerance"`
	// WidenFactor multiplies the relative tolerance to form the near-miss band.
	WidenFactor     float64  `toml:"widen_factor"`
	Workers         int      `toml:"workers"`
	SuccessStatuses []string `toml:"success_statuses"`
}

// Rounding holds decimal places per quantity class applied at merge time.
type Rounding struct {
	Length int `toml:"length"`
	Weight int `toml:"weight"`
	Cost   int `toml:"cost"`
	Time   int `toml:"time"`
	Count  int `toml:"count"`
}

// Units describes the time units used by the legacy export's routing columns.
type Units struct {
	ExportSetup string `toml:"export_setup"`
	ExportRun   string `toml:"export_run"`
}

// Mapping contains rules for associating legacy part keys with file names.
type Mapping struct {
	Include          []string `toml:"include"`
	SecondaryKeys    []string `toml:"secondary_keys"`
	DefaultExtension string   `toml:"default_extension"`
}

// Baseline contains manifest metadata defaults.
type Baseline struct {
	Description string `toml:"description"`
}

// Coverage contains coverage history settings.
type Coverage struct {
	Backend string `toml:"backend"`
	Window  int    `toml:"window"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File receives a copy of the log stream when set.
	File string `toml:"file"`
}

// Config encapsulates all configuration values for partrecon.
//
// Configuration sections by subsystem:
//   - Paths: legacy export, property dump, manifest, results, report, history
//   - Compare: tolerance override, widened band factor, worker count
//   - Tolerances: per quantity class bands seeded into new manifests
//   - Rounding: decimal places per quantity class for baseline values
//   - Units: legacy routing time units
//   - Mapping: file listing globs and synthetic key patterns
//   - Baseline: manifest description
//   - Coverage: history backend and default trend window
//   - Logging: log format and level
type Config struct {
	Paths      Paths           `toml:"paths"`
	Compare    Compare         `toml:"compare"`
	Tolerances map[string]Band `toml:"tolerances"`
	Rounding   Rounding        `toml:"rounding"`
	Units      Units           `toml:"units"`
	Mapping    Mapping         `toml:"mapping"`
	Baseline   Baseline        `toml:"baseline"`
	Coverage   Coverage        `toml:"coverage"`
	Logging    Logging         `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/partrecon/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("partrecon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Band returns the configured band for a quantity class, falling back to the
// "default" class. A positive Compare.RelativeTolerance replaces the relative part.
func (c *Config) Band(class string) Band {
	band, ok := c.Tolerances[strings.ToLower(strings.TrimSpace(class))]
	if !ok {
		band = c.Tolerances[defaultClass]
	}
	if c.Compare.RelativeTolerance > 0 {
		band.Relative = c.Compare.RelativeTolerance
	}
	return band
}

// Precision returns decimal places used when storing values of a quantity class.
func (c *Config) Precision(class string) int {
	switch strings.ToLower(strings.TrimSpace(class)) {
	case "length":
		return c.Rounding.Length
	case "weight":
		return c.Rounding.Weight
	case "cost":
		return c.Rounding.Cost
	case "time":
		return c.Rounding.Time
	default:
		return c.Rounding.Count
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
