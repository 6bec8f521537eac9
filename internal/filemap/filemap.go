// Package filemap maps legacy part keys onto CAD file names.
//
// Matching is deterministic for a given listing: an exact, case-insensitive
// match of the key against the base name wins, otherwise the first file in
// listing order whose base name extends the key.
package filemap

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"partrecon/internal/logging"
	"partrecon/internal/textutil"
)

// AmbiguousKeyError records a key that prefix-matched more than one file.
// The first candidate is still used.
type AmbiguousKeyError struct {
	Key        string   `json:"key"`
	Chosen     string   `json:"chosen"`
	Candidates []string `json:"candidates"`
}

func (e *AmbiguousKeyError) Error() string {
	return fmt.Sprintf("part key %q matches %d files by prefix (%s); using %s",
		e.Key, len(e.Candidates), strings.Join(e.Candidates, ", "), e.Chosen)
}

// Mapping is the outcome of mapping a set of keys.
type Mapping struct {
	Mapped    map[string]string   `json:"mapped"`
	Unmapped  []string            `json:"unmapped"`
	Ambiguous []AmbiguousKeyError `json:"ambiguous"`
	Excluded  []string            `json:"excluded"`
}

// Options configures a Mapper.
type Options struct {
	// DefaultExtension is appended to a key when no listing is available.
	DefaultExtension string
	// SecondaryKeys are doublestar patterns for synthetic keys that never map.
	SecondaryKeys []string
	Logger        *slog.Logger
}

// Mapper resolves part keys against a file listing.
type Mapper struct {
	files     []string
	bases     []string
	ext       string
	secondary []string
	logger    *slog.Logger
}

// New constructs a mapper. A nil files slice means no listing is available,
// in which case every key maps to key plus the default extension.
func New(files []string, opts Options) (*Mapper, error) {
	for _, pattern := range opts.SecondaryKeys {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid secondary key pattern %q", pattern)
		}
	}
	m := &Mapper{
		ext:       normalizeExtension(opts.DefaultExtension),
		secondary: append([]string(nil), opts.SecondaryKeys...),
		logger:    logging.NewComponentLogger(opts.Logger, "filemap"),
	}
	if files != nil {
		m.files = append([]string{}, files...)
		m.bases = make([]string, len(files))
		for i, name := range files {
			m.bases[i] = textutil.Fold(textutil.BaseName(name))
		}
	}
	return m, nil
}

// HasListing reports whether the mapper was given a file listing.
func (m *Mapper) HasListing() bool { return m.files != nil }

// IsSecondary reports whether key matches a secondary-identifier pattern.
func (m *Mapper) IsSecondary(key string) bool {
	for _, pattern := range m.secondary {
		if ok, _ := doublestar.Match(pattern, key); ok {
			return true
		}
	}
	return false
}

// Lookup maps one key. The returned AmbiguousKeyError is non-nil when more
// than one file prefix-matched.
func (m *Mapper) Lookup(key string) (string, *AmbiguousKeyError, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil, false
	}
	if m.files == nil {
		return key + m.ext, nil, true
	}
	folded := textutil.Fold(key)
	for i, base := range m.bases {
		if base == folded {
			return m.files[i], nil, true
		}
	}
	var candidates []string
	for i, base := range m.bases {
		if len(base) > len(folded) && strings.HasPrefix(base, folded) {
			candidates = append(candidates, m.files[i])
		}
	}
	switch len(candidates) {
	case 0:
		return "", nil, false
	case 1:
		return candidates[0], nil, true
	default:
		return candidates[0], &AmbiguousKeyError{Key: key, Chosen: candidates[0], Candidates: candidates}, true
	}
}

// Map resolves every key. Keys in synthetic (top-level assemblies) or matching
// a secondary pattern are excluded and never reported unmapped. Output slices
// are sorted by key.
func (m *Mapper) Map(keys []string, synthetic map[string]bool) Mapping {
	result := Mapping{Mapped: make(map[string]string)}
	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)

	for _, key := range ordered {
		if synthetic[key] || m.IsSecondary(key) {
			result.Excluded = append(result.Excluded, key)
			continue
		}
		file, ambiguous, ok := m.Lookup(key)
		if !ok {
			result.Unmapped = append(result.Unmapped, key)
			continue
		}
		if ambiguous != nil {
			result.Ambiguous = append(result.Ambiguous, *ambiguous)
			logging.WarnWithContext(m.logger, "ambiguous part key", "filemap_ambiguous_key",
				logging.String(logging.FieldPart, key),
				logging.String(logging.FieldFile, file),
				logging.Int("candidates", len(ambiguous.Candidates)),
				logging.String(logging.FieldErrorHint, "rename the CAD files or add an exact match to the listing"),
				logging.String(logging.FieldImpact, "first candidate in listing order is used"),
			)
		}
		result.Mapped[key] = file
	}
	if len(result.Unmapped) > 0 {
		m.logger.Info("part keys without a CAD file", logging.Int("count", len(result.Unmapped)))
	}
	return result
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
