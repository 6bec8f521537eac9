package reconcile

import (
	"fmt"

	"partrecon/internal/manifest"
	"partrecon/internal/tolerance"
)

// FieldCoercionError reports an actual value that could not be read as the
// number its expectation requires. It never aborts a run.
type FieldCoercionError struct {
	File  string `json:"file"`
	Field string `json:"field"`
	Value string `json:"value"`
}

func (e *FieldCoercionError) Error() string {
	return fmt.Sprintf("%s: field %s: actual value %q is not numeric", e.File, e.Field, e.Value)
}

// compareField evaluates one field against its expectation.
func compareField(file, field string, expected manifest.Value, actual manifest.Value, hasActual bool, band tolerance.Band, widen float64) (Outcome, *FieldCoercionError) {
	var o Outcome
	if !hasActual {
		return o, nil
	}
	o.ActualPresent = !actual.IsEmpty()

	// Text that reads as a number still gets a tolerance band.
	want, numeric := expected.Numeric().Float()
	if !numeric {
		o.TightMatch = tolerance.CompareText(actual.String(), expected.String())
		return o, nil
	}

	got, ok := actual.Numeric().Float()
	if !ok {
		if expected.IsText() {
			o.TightMatch = tolerance.CompareText(actual.String(), expected.String())
			return o, nil
		}
		return o, &FieldCoercionError{File: file, Field: field, Value: actual.String()}
	}
	if actual.IsText() {
		o.ActualPresent = got != 0
	}
	o.TightMatch = band.Contains(got, want)
	o.WideMatch = !o.TightMatch && band.Widen(widen).Contains(got, want)
	return o, nil
}
