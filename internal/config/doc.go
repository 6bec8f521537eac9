// Package config loads, normalizes, and validates partrecon configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PARTRECON_MANIFEST. The Config type centralizes every knob the CLI needs:
// input and output locations, tolerance bands per quantity class, rounding
// precision, legacy time units, file mapping rules, and coverage storage.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical unit names, and clear validation errors.
package config
