package flatfile

// Record is one data row of a section. Field names are shared with every other
// record of the same section; values past the row's length are unset.
type Record struct {
	section string
	line    int
	fields  []string
	index   map[string]int
	values  []string
}

// Section returns the section code the record was declared under.
func (r Record) Section() string { return r.section }

// Line returns the 1-based line number of the row in the export.
func (r Record) Line() int { return r.line }

// Fields returns the declared field names in order.
func (r Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Declares reports whether the section header declared the named field.
func (r Record) Declares(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Get returns the raw value of a field. ok is false when the field is not
// declared or the row ended before reaching it.
func (r Record) Get(name string) (string, bool) {
	pos, ok := r.index[name]
	if !ok || pos >= len(r.values) {
		return "", false
	}
	return r.values[pos], true
}

// Value returns the raw value of a field or "" when unset.
func (r Record) Value(name string) string {
	value, _ := r.Get(name)
	return value
}

// Len returns the number of fields set by the row.
func (r Record) Len() int { return len(r.values) }

// Map returns the set fields as a new map.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for i, value := range r.values {
		out[r.fields[i]] = value
	}
	return out
}

// Section is a DECL block with its declared fields and data rows.
type Section struct {
	Code    string
	Line    int
	Fields  []string
	Records []Record

	index map[string]int
}

// Document is the parsed form of one export file.
type Document struct {
	sections []Section
	// ignored counts data rows seen outside any section.
	ignored int
	// skipped counts lines between a header and its END marker.
	skipped int
}

// Sections returns the parsed sections in file order.
func (d *Document) Sections() []Section {
	out := make([]Section, len(d.sections))
	copy(out, d.sections)
	return out
}

// Records returns every record declared under code, in file order.
func (d *Document) Records(code string) []Record {
	var out []Record
	for _, section := range d.sections {
		if section.Code == code {
			out = append(out, section.Records...)
		}
	}
	return out
}

// All returns every record in file order.
func (d *Document) All() []Record {
	var out []Record
	for _, section := range d.sections {
		out = append(out, section.Records...)
	}
	return out
}

// SectionStats summarizes one section code.
type SectionStats struct {
	Code     string `json:"code"`
	Blocks   int    `json:"blocks"`
	Records  int    `json:"records"`
	MaxWidth int    `json:"maxWidth"`
}

// Stats summarizes a document.
type Stats struct {
	Sections     []SectionStats `json:"sections"`
	IgnoredRows  int            `json:"ignoredRows"`
	SkippedLines int            `json:"skippedLines"`
}

// Stats returns per-code counts in order of first appearance.
func (d *Document) Stats() Stats {
	stats := Stats{IgnoredRows: d.ignored, SkippedLines: d.skipped}
	positions := make(map[string]int)
	for _, section := range d.sections {
		pos, ok := positions[section.Code]
		if !ok {
			pos = len(stats.Sections)
			positions[section.Code] = pos
			stats.Sections = append(stats.Sections, SectionStats{Code: section.Code})
		}
		stats.Sections[pos].Blocks++
		stats.Sections[pos].Records += len(section.Records)
		if len(section.Fields) > stats.Sections[pos].MaxWidth {
			stats.Sections[pos].MaxWidth = len(section.Fields)
		}
	}
	return stats
}
