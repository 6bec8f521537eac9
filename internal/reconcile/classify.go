package reconcile

import "partrecon/internal/manifest"

// Status is the classification of one compared field.
type Status string

const (
	StatusMatch       Status = "MATCH"
	StatusTolerance   Status = "TOLERANCE"
	StatusNotImpl     Status = "NOT_IMPL"
	StatusIntentional Status = "INTENTIONAL"
	StatusBug         Status = "BUG"
	StatusMissing     Status = "MISSING"
	StatusFail        Status = "FAIL"
)

// Statuses lists every status in precedence order.
var Statuses = []Status{
	StatusMatch,
	StatusTolerance,
	StatusNotImpl,
	StatusIntentional,
	StatusBug,
	StatusMissing,
	StatusFail,
}

// Passing reports whether the status counts toward coverage.
func (s Status) Passing() bool {
	return s == StatusMatch || s == StatusTolerance
}

// Blocking reports whether the status fails its part.
func (s Status) Blocking() bool {
	return s == StatusFail || s == StatusMissing
}

// Outcome is everything classification needs to know about one field.
type Outcome struct {
	// TightMatch is the comparison against the configured band.
	TightMatch bool
	// WideMatch is the comparison against the widened band.
	WideMatch bool
	// ActualPresent is false when the actual value is absent, blank or zero.
	ActualPresent bool
	// Deviation is the documented deviation status, empty when none.
	Deviation manifest.DeviationStatus
}

// Classify maps an outcome to its status. Precedence is MATCH, TOLERANCE,
// NOT_IMPL, INTENTIONAL, BUG, MISSING, FAIL.
func Classify(o Outcome) Status {
	switch {
	case o.TightMatch:
		return StatusMatch
	case o.WideMatch:
		return StatusTolerance
	case !o.ActualPresent && o.Deviation == manifest.DeviationNotImplemented:
		return StatusNotImpl
	case !o.ActualPresent:
		return StatusMissing
	case o.Deviation == manifest.DeviationIntentional:
		return StatusIntentional
	case o.Deviation == manifest.DeviationBug:
		return StatusBug
	default:
		return StatusFail
	}
}
