package coverage

import "fmt"

// Trend is the change between the first and last snapshot of a window.
type Trend struct {
	From     Snapshot `json:"from"`
	To       Snapshot `json:"to"`
	Runs     int      `json:"runs"`
	Match    int      `json:"match"`
	NotImpl  int      `json:"notImpl"`
	Fail     int      `json:"fail"`
	Coverage float64  `json:"coverage"`
}

// ComputeTrend returns the deltas across rows. ok is false for an empty
// window; a single row yields zero deltas.
func ComputeTrend(rows []Snapshot) (Trend, bool) {
	if len(rows) == 0 {
		return Trend{}, false
	}
	first, last := rows[0], rows[len(rows)-1]
	return Trend{
		From:     first,
		To:       last,
		Runs:     len(rows),
		Match:    last.Match - first.Match,
		NotImpl:  last.NotImpl - first.NotImpl,
		Fail:     last.Fail - first.Fail,
		Coverage: roundPercent(last.Coverage - first.Coverage),
	}, true
}

// FormatCount renders a count delta with an explicit sign.
func FormatCount(delta int) string {
	return fmt.Sprintf("%+d", delta)
}

// FormatPercent renders a coverage delta with an explicit sign.
func FormatPercent(delta float64) string {
	return fmt.Sprintf("%+.1f%%", delta)
}
