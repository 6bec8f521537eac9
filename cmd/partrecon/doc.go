// Package main hosts the partrecon CLI entrypoint and command graph.
//
// The Cobra command tree covers the four steps of a reconciliation cycle:
// inspecting a legacy export (parse), building the gold-standard manifest
// from it (build-baseline), comparing a pipeline run against the manifest
// (compare) and recording coverage over time (track-coverage). Configuration
// resolution and logger construction live in commandContext so subcommands
// only read flags, call internal packages and render results.
//
// Keep this package lean: behaviour belongs in internal/ and is surfaced here
// through flags and output formatting.
package main
