package config

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCompare(); err != nil {
		return err
	}
	if err := c.validateTolerances(); err != nil {
		return err
	}
	if err := c.validateRounding(); err != nil {
		return err
	}
	if err := c.validateUnits(); err != nil {
		return err
	}
	if err := c.validateMapping(); err != nil {
		return err
	}
	if err := c.validateCoverage(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.Manifest == "" {
		return errors.New("paths.manifest must be set")
	}
	if c.Paths.History == "" {
		return errors.New("paths.history must be set")
	}
	if c.Paths.PartsDir != "" && c.Paths.Listing != "" {
		return errors.New("paths.parts_dir and paths.listing are mutually exclusive")
	}
	return nil
}

func (c *Config) validateCompare() error {
	if c.Compare.RelativeTolerance < 0 {
		return errors.New("compare.relative_tolerance must be non-negative")
	}
	if c.Compare.WidenFactor < 1 {
		return fmt.Errorf("compare.widen_factor must be at least 1, got %g", c.Compare.WidenFactor)
	}
	return nil
}

func (c *Config) validateTolerances() error {
	for class, band := range c.Tolerances {
		if band.Relative < 0 || band.MinAbs < 0 {
			return fmt.Errorf("tolerances.%s: relative and min_abs must be non-negative", class)
		}
	}
	return nil
}

func (c *Config) validateRounding() error {
	for name, value := range map[string]int{
		"length": c.Rounding.Length,
		"weight": c.Rounding.Weight,
		"cost":   c.Rounding.Cost,
		"time":   c.Rounding.Time,
		"count":  c.Rounding.Count,
	} {
		if value < 0 || value > 10 {
			return fmt.Errorf("rounding.%s must be between 0 and 10, got %d", name, value)
		}
	}
	return nil
}

func (c *Config) validateUnits() error {
	for key, unit := range map[string]string{
		"units.export_setup": c.Units.ExportSetup,
		"units.export_run":   c.Units.ExportRun,
	} {
		switch unit {
		case UnitSeconds, UnitMinutes, UnitHours:
		default:
			return fmt.Errorf("%s: unsupported unit %q (use seconds, minutes, or hours)", key, unit)
		}
	}
	return nil
}

func (c *Config) validateMapping() error {
	for _, pattern := range append(append([]string{}, c.Mapping.Include...), c.Mapping.SecondaryKeys...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("mapping: invalid glob pattern %q", pattern)
		}
	}
	return nil
}

func (c *Config) validateCoverage() error {
	switch c.Coverage.Backend {
	case BackendTSV, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("coverage.backend: unsupported value %q (use tsv or sqlite)", c.Coverage.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
