package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold trims value and applies Unicode case folding so that values differing
// only in case compare equal.
func Fold(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

// FoldEqual reports whether a and b are equal after trimming and case folding.
func FoldEqual(a, b string) bool {
	return Fold(a) == Fold(b)
}
