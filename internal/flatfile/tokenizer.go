package flatfile

import (
	"errors"
	"strings"
)

var errUnterminatedQuote = errors.New("unterminated quoted token")

type tokenState int

const (
	stateUnquoted tokenState = iota
	stateQuoted
	stateQuotedEscape
)

// Tokenize splits one line into tokens. It fails only when a quote is left
// open at the end of the line.
func Tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		state   = stateUnquoted
		// started is set once the current token has content or an opening
		// quote, so that "" still yields a token.
		started bool
	)

	emit := func() {
		if started {
			tokens = append(tokens, current.String())
		}
		current.Reset()
		started = false
	}

	for _, r := range line {
		switch state {
		case stateUnquoted:
			switch r {
			case ' ', '\t':
				emit()
			case '"':
				state = stateQuoted
				started = true
			default:
				current.WriteRune(r)
				started = true
			}
		case stateQuoted:
			switch r {
			case '"':
				state = stateUnquoted
			case '\\':
				state = stateQuotedEscape
			default:
				current.WriteRune(r)
			}
		case stateQuotedEscape:
			switch r {
			case '"':
				current.WriteRune('"')
				state = stateQuoted
			case '\\':
				// The pending backslash is literal; the new one may still
				// escape a following quote.
				current.WriteRune('\\')
			default:
				current.WriteRune('\\')
				current.WriteRune(r)
				state = stateQuoted
			}
		}
	}

	if state != stateUnquoted {
		return nil, errUnterminatedQuote
	}
	emit()
	return tokens, nil
}
