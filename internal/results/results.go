// Package results loads the actual-results document written by the new
// pipeline.
//
// The document is either a JSON array of records or an object with a
// "results" array. Each record names its file and status; every other key is
// a field. Nested objects flatten to parent.child and the routing object
// flattens to <WC>_Setup and <WC>_Run so that names line up with manifest
// fields.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"partrecon/internal/apperr"
	"partrecon/internal/manifest"
	"partrecon/internal/textutil"
)

const (
	keyFile     = "file"
	keyStatus   = "status"
	keyRouting  = "routing"
	keyResults  = "results"
	keyFileName = "fileName"
)

// DefaultSuccessStatuses are the status values counted as a successful run
// when none are configured.
var DefaultSuccessStatuses = []string{"success", "ok", "pass", "passed"}

// Record is one part's actual result.
type Record struct {
	File   string
	Status string
	Fields map[string]manifest.Value
}

// Succeeded reports whether the record's status is one of the success-like
// statuses, compared case-insensitively.
func (r Record) Succeeded(statuses []string) bool {
	if len(statuses) == 0 {
		statuses = DefaultSuccessStatuses
	}
	for _, status := range statuses {
		if textutil.FoldEqual(r.Status, status) {
			return true
		}
	}
	return false
}

// Field returns an actual value.
func (r Record) Field(name string) (manifest.Value, bool) {
	value, ok := r.Fields[name]
	return value, ok
}

// Provides reports whether the pipeline filled a field with something other
// than blank text.
func (r Record) Provides(name string) bool {
	value, ok := r.Fields[name]
	if !ok {
		return false
	}
	return !value.IsText() || strings.TrimSpace(value.String()) != ""
}

// Set is the loaded results document.
type Set struct {
	records []Record
	byFile  map[string]int
}

// Records returns the records in document order.
func (s *Set) Records() []Record {
	if s == nil {
		return nil
	}
	return append([]Record(nil), s.records...)
}

// Len returns the number of records.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Get returns the record for a file name, ignoring case and directories.
func (s *Set) Get(file string) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	idx, ok := s.byFile[fileKey(file)]
	if !ok {
		return Record{}, false
	}
	return s.records[idx], true
}

// Files returns the record file names sorted.
func (s *Set) Files() []string {
	if s == nil {
		return nil
	}
	files := make([]string, 0, len(s.records))
	for _, record := range s.records {
		files = append(files, record.File)
	}
	sort.Strings(files)
	return files
}

// Load reads a results document from disk.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.MissingInputError{Kind: "results", Path: path}
		}
		return nil, fmt.Errorf("read results: %w", err)
	}
	set, err := Decode(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrParse, "results", path, err)
	}
	return set, nil
}

// Decode parses a results document. A later record for the same file
// replaces an earlier one.
func Decode(data []byte) (*Set, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("results document is empty")
	}
	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, err
		}
		raw, ok := wrapper[keyResults]
		if !ok {
			return nil, fmt.Errorf("results document has no %q array", keyResults)
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%s: %w", keyResults, err)
		}
	default:
		return nil, fmt.Errorf("results document must be an array or object")
	}

	set := &Set{byFile: make(map[string]int, len(items))}
	for i, item := range items {
		record, err := decodeRecord(item)
		if err != nil {
			return nil, fmt.Errorf("results[%d]: %w", i, err)
		}
		key := fileKey(record.File)
		if idx, dup := set.byFile[key]; dup {
			set.records[idx] = record
			continue
		}
		set.byFile[key] = len(set.records)
		set.records = append(set.records, record)
	}
	return set, nil
}

func decodeRecord(raw json.RawMessage) (Record, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Record{}, err
	}
	if obj == nil {
		return Record{}, fmt.Errorf("record must be an object")
	}
	record := Record{Fields: map[string]manifest.Value{}}
	for key, msg := range obj {
		switch key {
		case keyFile, keyFileName:
			var name string
			if err := json.Unmarshal(msg, &name); err != nil {
				return Record{}, fmt.Errorf("%s: %w", key, err)
			}
			if record.File == "" || key == keyFile {
				record.File = baseName(name)
			}
		case keyStatus:
			var status string
			if err := json.Unmarshal(msg, &status); err != nil {
				return Record{}, fmt.Errorf("%s: %w", key, err)
			}
			record.Status = strings.TrimSpace(status)
		case keyRouting:
			if err := flattenRouting(msg, record.Fields); err != nil {
				return Record{}, fmt.Errorf("%s: %w", key, err)
			}
		default:
			if err := flatten(key, msg, record.Fields); err != nil {
				return Record{}, err
			}
		}
	}
	if record.File == "" {
		return Record{}, fmt.Errorf("record has no %q", keyFile)
	}
	return record, nil
}

func flatten(name string, msg json.RawMessage, out map[string]manifest.Value) error {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return nil
	}
	switch msg[0] {
	case 'n':
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(msg, &b); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out[name] = manifest.Bool(b)
		return nil
	case '[':
		// Lists have no manifest counterpart.
		return nil
	case '{':
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(msg, &nested); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for child, value := range nested {
			if err := flatten(name+"."+child, value, out); err != nil {
				return err
			}
		}
		return nil
	}
	value, ok := manifest.ParseValue(msg)
	if !ok {
		return fmt.Errorf("%s: unsupported value %s", name, msg)
	}
	out[name] = value
	return nil
}

func flattenRouting(msg json.RawMessage, out map[string]manifest.Value) error {
	var table map[string]map[string]json.RawMessage
	if err := json.Unmarshal(msg, &table); err != nil {
		return err
	}
	for wc, op := range table {
		for key, raw := range op {
			var suffix string
			switch strings.ToLower(key) {
			case "setup":
				suffix = manifest.SetupSuffix
			case "run":
				suffix = manifest.RunSuffix
			default:
				suffix = "_" + key
			}
			if err := flatten(wc+suffix, raw, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// baseName strips any directory, whether written with / or \.
func baseName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

func fileKey(file string) string {
	return textutil.Fold(baseName(file))
}
