// Package tolerance compares actual values against expectations.
//
// Numeric comparison uses a band made of a relative part and an absolute
// floor. At an expected value of exactly zero the relative part is undefined,
// so only the floor applies.
package tolerance

import (
	"math"
	"strings"

	"partrecon/internal/textutil"
)

// Band is a tolerance band for one quantity class.
type Band struct {
	Relative float64 `json:"relative"`
	MinAbs   float64 `json:"minAbs"`
}

// Widen scales the relative part of the band. The absolute floor is kept.
func (b Band) Widen(factor float64) Band {
	if factor <= 0 {
		return b
	}
	return Band{Relative: b.Relative * factor, MinAbs: b.MinAbs}
}

// Contains reports whether actual lies within the band around expected.
func (b Band) Contains(actual, expected float64) bool {
	return Compare(actual, expected, b.Relative, b.MinAbs)
}

// Compare reports whether actual matches expected within
// max(|expected|*relTol, minAbsTol). When expected is zero only minAbsTol is
// used.
func Compare(actual, expected, relTol, minAbsTol float64) bool {
	if math.IsNaN(actual) || math.IsNaN(expected) {
		return false
	}
	if actual == expected {
		return true
	}
	diff := math.Abs(actual - expected)
	if expected == 0 {
		return diff <= minAbsTol
	}
	return diff <= math.Max(math.Abs(expected)*relTol, minAbsTol)
}

// CompareText reports whether two strings are equal after trimming and
// Unicode case folding.
func CompareText(actual, expected string) bool {
	return textutil.FoldEqual(actual, expected)
}

// Class is a quantity class with its own band and rounding.
type Class string

const (
	ClassLength  Class = "length"
	ClassWeight  Class = "weight"
	ClassCost    Class = "cost"
	ClassTime    Class = "time"
	ClassCount   Class = "count"
	ClassDefault Class = "default"
)

var classHints = []struct {
	class Class
	hints []string
}{
	{ClassTime, []string{"_setup", "_run", "time", "hours"}},
	{ClassCost, []string{"cost", "price"}},
	{ClassWeight, []string{"weight", "mass"}},
	{ClassCount, []string{"quantity", "qty", "count"}},
	{ClassLength, []string{"length", "width", "height", "thickness", "depth", "diameter", "radius"}},
}

// ClassOf infers the quantity class of a manifest field name.
func ClassOf(field string) Class {
	name := strings.ToLower(strings.TrimSpace(field))
	for _, entry := range classHints {
		for _, hint := range entry.hints {
			if strings.Contains(name, hint) {
				return entry.class
			}
		}
	}
	return ClassDefault
}

// Bands holds one band per quantity class.
type Bands map[Class]Band

// For returns the band of the field's class, falling back to the default
// class and then to the zero band.
func (b Bands) For(field string) Band {
	if band, ok := b[ClassOf(field)]; ok {
		return band
	}
	return b[ClassDefault]
}

// WithRelative returns a copy of b with every relative part replaced.
func (b Bands) WithRelative(relative float64) Bands {
	out := make(Bands, len(b))
	for class, band := range b {
		band.Relative = relative
		out[class] = band
	}
	if _, ok := out[ClassDefault]; !ok {
		out[ClassDefault] = Band{Relative: relative}
	}
	return out
}
