package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"partrecon/internal/apperr"
	"partrecon/internal/fileutil"
)

// PartField is the field name of a part-level outcome mismatch.
const PartField = "status"

// FieldResult is the comparison of one (file, field) pair.
type FieldResult struct {
	File     string `json:"file"`
	Field    string `json:"field"`
	Status   Status `json:"status"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Tier     string `json:"tier,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Counts tallies results per status.
type Counts map[Status]int

// Total returns the number of classified fields.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Coverage returns (MATCH + TOLERANCE) / total as a percentage. An empty run
// has zero coverage.
func (c Counts) Coverage() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return 100 * float64(c[StatusMatch]+c[StatusTolerance]) / float64(total)
}

// PartSummary aggregates one file.
type PartSummary struct {
	File    string `json:"file"`
	Passing bool   `json:"passing"`
	Counts  Counts `json:"counts"`
}

// Totals aggregates the whole run.
type Totals struct {
	Parts        int     `json:"parts"`
	PassingParts int     `json:"passingParts"`
	Fields       int     `json:"fields"`
	Counts       Counts  `json:"counts"`
	Coverage     float64 `json:"coverage"`
}

// Report is the outcome of one reconciliation run.
type Report struct {
	RunID           string               `json:"runId"`
	GeneratedAt     string               `json:"generatedAt"`
	ManifestVersion string               `json:"manifestVersion"`
	Totals          Totals               `json:"totals"`
	Parts           []PartSummary        `json:"parts"`
	Results         []FieldResult        `json:"results"`
	Unexpected      []string             `json:"unexpected"`
	CoercionErrors  []FieldCoercionError `json:"coercionErrors"`
}

// Passed reports whether no FAIL or MISSING result exists.
func (r *Report) Passed() bool {
	return r.Totals.Counts[StatusFail] == 0 && r.Totals.Counts[StatusMissing] == 0
}

// Err returns apperr.ErrReconciliationFailed wrapped with the blocking
// counts, or nil when the run passed.
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	return fmt.Errorf("%w: %d FAIL, %d MISSING", apperr.ErrReconciliationFailed,
		r.Totals.Counts[StatusFail], r.Totals.Counts[StatusMissing])
}

// Save writes the report as indented JSON, atomically and under a lock.
func Save(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	return fileutil.WithLock(path, func() error {
		return fileutil.WriteFileAtomic(path, data, 0o644)
	})
}

// LoadReport reads a report written by Save.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.MissingInputError{Kind: "report", Path: path}
		}
		return nil, fmt.Errorf("read report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, apperr.Wrap(apperr.ErrParse, "report", path, err)
	}
	if report.Totals.Counts == nil {
		report.Totals.Counts = Counts{}
	}
	return &report, nil
}
