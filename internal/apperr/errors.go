// Package apperr holds the error markers shared by partrecon commands.
//
// Fatal conditions are tagged with one of the sentinel markers so the CLI can
// classify them with errors.Is, while the typed errors carry the detail a
// human needs (the missing path, the failing stage).
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingInput          = errors.New("missing input")
	ErrParse                 = errors.New("parse error")
	ErrConfiguration         = errors.New("configuration error")
	ErrReconciliationFailed  = errors.New("reconciliation failed")
	ErrBaselineWriteConflict = errors.New("baseline write conflict")
)

// MissingInputError reports a required input file that does not exist.
type MissingInputError struct {
	Kind string
	Path string
}

func (e *MissingInputError) Error() string {
	kind := strings.TrimSpace(e.Kind)
	if kind == "" {
		kind = "input"
	}
	if strings.TrimSpace(e.Path) == "" {
		return fmt.Sprintf("%s file not configured", kind)
	}
	return fmt.Sprintf("%s file not found: %s", kind, e.Path)
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker. The marker should be one of the sentinels above.
func Wrap(marker error, stage, operation string, err error) error {
	detail := buildDetail(stage, operation)
	if marker == nil {
		if err == nil {
			return errors.New(detail)
		}
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation string) string {
	parts := make([]string, 0, 2)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "operation failed"
	}
	return strings.Join(parts, ": ")
}
