// Package coverage keeps the append-only history of reconciliation runs and
// reports how coverage moves over a window of runs.
//
// Trend deltas are plain differences between the first and last snapshot of
// a window. They are a signal for humans, not a statistical test.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"partrecon/internal/reconcile"
)

// ErrDuplicateRun is returned when a snapshot with the same run id exists.
var ErrDuplicateRun = errors.New("run already recorded")

// Snapshot is one row of the history.
type Snapshot struct {
	RunID       string    `json:"runId"`
	Timestamp   time.Time `json:"timestamp"`
	Total       int       `json:"total"`
	Match       int       `json:"match"`
	Tolerance   int       `json:"tolerance"`
	NotImpl     int       `json:"notImpl"`
	Intentional int       `json:"intentional"`
	Bug         int       `json:"bug"`
	Missing     int       `json:"missing"`
	Fail        int       `json:"fail"`
	// Coverage is (Match + Tolerance) / Total in percent.
	Coverage float64 `json:"coverage"`
}

// FromReport derives a snapshot from a reconciliation report. Missing run id
// or timestamp are filled from uuid and now.
func FromReport(report *reconcile.Report, now time.Time) Snapshot {
	counts := report.Totals.Counts
	snap := Snapshot{
		RunID:       report.RunID,
		Timestamp:   now.UTC(),
		Total:       counts.Total(),
		Match:       counts[reconcile.StatusMatch],
		Tolerance:   counts[reconcile.StatusTolerance],
		NotImpl:     counts[reconcile.StatusNotImpl],
		Intentional: counts[reconcile.StatusIntentional],
		Bug:         counts[reconcile.StatusBug],
		Missing:     counts[reconcile.StatusMissing],
		Fail:        counts[reconcile.StatusFail],
		Coverage:    roundPercent(counts.Coverage()),
	}
	if ts, err := time.Parse(time.RFC3339, report.GeneratedAt); err == nil {
		snap.Timestamp = ts.UTC()
	}
	if snap.RunID == "" {
		snap.RunID = uuid.NewString()
	}
	return snap
}

func (s Snapshot) validate() error {
	if s.RunID == "" {
		return fmt.Errorf("snapshot has no run id")
	}
	if s.Total < 0 {
		return fmt.Errorf("snapshot total %d is negative", s.Total)
	}
	return nil
}

// Store persists snapshots in append order.
type Store interface {
	Append(ctx context.Context, snap Snapshot) error
	// Window returns the last n snapshots, oldest first. n <= 0 returns all.
	Window(ctx context.Context, n int) ([]Snapshot, error)
	Close() error
}

func roundPercent(value float64) float64 {
	return math.Round(value*100) / 100
}

func lastN(rows []Snapshot, n int) []Snapshot {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[len(rows)-n:]
}
