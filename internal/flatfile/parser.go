package flatfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"partrecon/internal/apperr"
	"partrecon/internal/logging"
)

const (
	declPrefix = "DECL("
	addMarker  = "ADD"
	endMarker  = "END"
	// Exports written by the legacy macros occasionally carry very long
	// routing-note rows.
	maxLineBytes = 1 << 20
)

type parserState int

const (
	stateIdle parserState = iota
	stateHeader
	stateData
)

// Parser turns export text into a Document.
type Parser struct {
	logger *slog.Logger
}

// NewParser constructs a parser. A nil logger discards output.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logging.NewComponentLogger(logger, "flatfile")}
}

// Parse reads the whole export. A failure returns no document at all, so a
// section is never partially committed.
func (p *Parser) Parse(r io.Reader) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	doc := &Document{}
	var (
		state   = stateIdle
		current *Section
		lineNo  int
	)

	closeSection := func() {
		if current != nil {
			doc.sections = append(doc.sections, *current)
			current = nil
		}
		state = stateIdle
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			closeSection()
			continue
		}

		if isHeaderLine(trimmed) {
			section, err := parseHeader(trimmed, lineNo)
			if err != nil {
				return nil, err
			}
			closeSection()
			current = section
			state = stateHeader
			continue
		}

		switch state {
		case stateIdle:
			doc.ignored++
			p.logger.Debug("ignoring row outside section", logging.Int(logging.FieldLine, lineNo))
		case stateHeader:
			if trimmed == endMarker {
				state = stateData
				continue
			}
			doc.skipped++
			p.logger.Debug("ignoring line before END",
				logging.String(logging.FieldSection, current.Code),
				logging.Int(logging.FieldLine, lineNo))
		case stateData:
			tokens, err := Tokenize(line)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: "malformed data row", Err: err}
			}
			current.Records = append(current.Records, newRecord(current, lineNo, tokens))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: lineNo + 1, Msg: "read export", Err: err}
	}
	closeSection()

	p.logger.Debug("parsed export",
		logging.Int("sections", len(doc.sections)),
		logging.Int("ignored_rows", doc.ignored))
	return doc, nil
}

// ParseFile parses the export at path. A missing file is reported as a
// MissingInputError, any other read failure as a ParseError.
func (p *Parser) ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.MissingInputError{Kind: "export", Path: path}
		}
		return nil, &ParseError{Path: path, Msg: "open export", Err: err}
	}
	defer file.Close()

	doc, err := p.Parse(file)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) && parseErr.Path == "" {
			parseErr.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// Parse is a convenience wrapper using a silent parser.
func Parse(r io.Reader) (*Document, error) {
	return NewParser(nil).Parse(r)
}

func isHeaderLine(line string) bool {
	if strings.HasPrefix(line, declPrefix) {
		return true
	}
	head, _, _ := strings.Cut(strings.ReplaceAll(line, "\t", " "), " ")
	return head == "DECL"
}

func parseHeader(line string, lineNo int) (*Section, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, &ParseError{Line: lineNo, Msg: "malformed header", Err: err}
	}
	if len(tokens) == 0 {
		return nil, &ParseError{Line: lineNo, Msg: "malformed header"}
	}
	head := tokens[0]
	if !strings.HasPrefix(head, declPrefix) || !strings.HasSuffix(head, ")") {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("malformed header %q: expected DECL(<code>)", head)}
	}
	code := strings.TrimSpace(head[len(declPrefix) : len(head)-1])
	if code == "" || strings.ContainsAny(code, "()") {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("malformed header %q: empty section code", head)}
	}

	fields := tokens[1:]
	if len(fields) > 0 && strings.EqualFold(fields[0], addMarker) {
		fields = fields[1:]
	}
	names := make([]string, len(fields))
	copy(names, fields)
	return &Section{Code: code, Line: lineNo, Fields: names}, nil
}

func newRecord(section *Section, lineNo int, tokens []string) Record {
	if section.index == nil {
		section.index = make(map[string]int, len(section.Fields))
		for i, name := range section.Fields {
			if _, exists := section.index[name]; !exists {
				section.index[name] = i
			}
		}
	}
	width := len(tokens)
	if width > len(section.Fields) {
		width = len(section.Fields)
	}
	values := make([]string, width)
	copy(values, tokens[:width])
	return Record{
		section: section.Code,
		line:    lineNo,
		fields:  section.Fields,
		index:   section.index,
		values:  values,
	}
}
