// Package textutil provides small text helpers shared by the parser, the
// manifest builder, and the reconciliation engine.
//
// The primary use cases are:
//   - Case-insensitive comparison of free-text values using Unicode case folding
//   - Normalizing legacy property names into manifest field names
//   - Splitting file names into base name and extension
package textutil
