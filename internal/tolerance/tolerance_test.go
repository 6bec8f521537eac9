package tolerance_test

import (
	"testing"

	"partrecon/internal/tolerance"
)

func TestCompareIsReflexive(t *testing.T) {
	values := []float64{0, 1, -1, 0.1, 0.105, 1e-9, 12345.678, -0.0001}
	bands := []tolerance.Band{{}, {Relative: 0.01}, {MinAbs: 0.001}, {Relative: 0.5, MinAbs: 2}}
	for _, x := range values {
		for _, band := range bands {
			if !tolerance.Compare(x, x, band.Relative, band.MinAbs) {
				t.Fatalf("Compare(%v, %v, %v, %v) = false", x, x, band.Relative, band.MinAbs)
			}
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		expected float64
		rel      float64
		abs      float64
		want     bool
	}{
		{name: "zero band inside floor", actual: 0.0009, expected: 0, rel: 0.5, abs: 0.001, want: true},
		{name: "zero band outside floor", actual: 0.0011, expected: 0, rel: 0.5, abs: 0.001, want: false},
		{name: "relative inside", actual: 101, expected: 100, rel: 0.01, abs: 0, want: true},
		{name: "relative outside", actual: 102, expected: 100, rel: 0.01, abs: 0, want: false},
		{name: "floor wins for small values", actual: 0.0105, expected: 0.01, rel: 0.01, abs: 0.001, want: true},
		{name: "negative expected", actual: -99.5, expected: -100, rel: 0.01, abs: 0, want: true},
		{name: "tight band rejects", actual: 0.105, expected: 0.10, rel: 0.01, abs: 0.001, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tolerance.Compare(tt.actual, tt.expected, tt.rel, tt.abs); got != tt.want {
				t.Fatalf("Compare(%v, %v, %v, %v) = %v, want %v", tt.actual, tt.expected, tt.rel, tt.abs, got, tt.want)
			}
		})
	}
}

func TestWidenedBand(t *testing.T) {
	band := tolerance.Band{Relative: 0.01, MinAbs: 0.001}
	if band.Contains(1.015, 1.0) {
		t.Fatal("tight band should reject 1.5% deviation")
	}
	if !band.Widen(2).Contains(1.015, 1.0) {
		t.Fatal("widened band should accept 1.5% deviation")
	}
	if band.Widen(2).Contains(0.0011, 0) {
		t.Fatal("widening must not grow the absolute floor")
	}
}

func TestCompareText(t *testing.T) {
	if !tolerance.CompareText("  Steel 304 ", "STEEL 304") {
		t.Fatal("expected case-insensitive trimmed match")
	}
	if tolerance.CompareText("Steel 304", "Steel 316") {
		t.Fatal("different text must not match")
	}
}

func TestClassOf(t *testing.T) {
	tests := map[string]tolerance.Class{
		"thickness":    tolerance.ClassLength,
		"blankLength":  tolerance.ClassLength,
		"rawWeight":    tolerance.ClassWeight,
		"standardCost": tolerance.ClassCost,
		"N120_Setup":   tolerance.ClassTime,
		"F210_Run":     tolerance.ClassTime,
		"bomQuantity":  tolerance.ClassCount,
		"partType":     tolerance.ClassDefault,
	}
	for field, want := range tests {
		if got := tolerance.ClassOf(field); got != want {
			t.Fatalf("ClassOf(%q) = %q, want %q", field, got, want)
		}
	}
}

func TestBandsFor(t *testing.T) {
	bands := tolerance.Bands{
		tolerance.ClassDefault: {Relative: 0.01, MinAbs: 0.001},
		tolerance.ClassTime:    {Relative: 0.05, MinAbs: 0.001},
	}
	if got := bands.For("N120_Run"); got.Relative != 0.05 {
		t.Fatalf("time band relative = %v, want 0.05", got.Relative)
	}
	if got := bands.For("rawWeight"); got.Relative != 0.01 {
		t.Fatalf("fallback relative = %v, want 0.01", got.Relative)
	}
	if got := bands.WithRelative(0.2).For("rawWeight"); got.Relative != 0.2 || got.MinAbs != 0.001 {
		t.Fatalf("override band = %+v", got)
	}
}
