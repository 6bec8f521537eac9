package flatfile

import (
	"fmt"

	"partrecon/internal/apperr"
)

// ParseError reports a fatal problem at a specific line of an export.
type ParseError struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	location := fmt.Sprintf("line %d", e.Line)
	if e.Path != "" {
		location = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", location, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", location, e.Msg)
}

// Unwrap exposes both the parse marker and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperr.ErrParse}
	}
	return []error{apperr.ErrParse, e.Err}
}
