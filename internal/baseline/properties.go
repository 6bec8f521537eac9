package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"partrecon/internal/apperr"
	"partrecon/internal/manifest"
	"partrecon/internal/textutil"
)

// PropertyDump holds legacy custom properties keyed by part key or file name.
type PropertyDump map[string]map[string]manifest.Value

// Keys returns the dump keys sorted.
func (d PropertyDump) Keys() []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// LoadProperties reads a property dump. Property names are normalized to
// manifest field names and numeric strings become numbers. Null and nested
// values are skipped.
func LoadProperties(path string) (PropertyDump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.MissingInputError{Kind: "property dump", Path: path}
		}
		return nil, fmt.Errorf("read property dump: %w", err)
	}
	dump, err := DecodeProperties(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrParse, "property dump", path, err)
	}
	return dump, nil
}

// DecodeProperties parses a property dump document.
func DecodeProperties(data []byte) (PropertyDump, error) {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	dump := make(PropertyDump, len(raw))
	for key, props := range raw {
		fields := make(map[string]manifest.Value, len(props))
		for name, msg := range props {
			field := textutil.FieldName(name)
			if field == "" {
				continue
			}
			if value, ok := manifest.ParseValue(msg); ok {
				fields[field] = value.Numeric()
			}
		}
		dump[key] = fields
	}
	return dump, nil
}
