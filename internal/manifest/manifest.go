// Package manifest models the gold-standard baseline document.
//
// A manifest maps file names to entries. Each entry carries expected values in
// an ordered list of tiers (see Precedence) and a ledger of documented
// deviations. A tier that is absent is untracked; an empty tier is tracked
// but holds no fields, and the two are preserved distinctly on disk.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"partrecon/internal/apperr"
	"partrecon/internal/fileutil"
	"partrecon/internal/tolerance"
)

// InitialVersion is the version of a manifest before its first build.
const InitialVersion = "1.0"

// Manifest is the baseline document.
type Manifest struct {
	Version           string                    `json:"version"`
	Description       string                    `json:"description,omitempty"`
	GeneratedAt       string                    `json:"generatedAt,omitempty"`
	DefaultTolerances map[string]tolerance.Band `json:"defaultTolerances,omitempty"`
	Files             map[string]*Entry         `json:"files"`
}

// New returns an empty manifest at InitialVersion.
func New(description string) *Manifest {
	return &Manifest{
		Version:     InitialVersion,
		Description: description,
		Files:       map[string]*Entry{},
	}
}

// FileNames returns the sorted file names.
func (m *Manifest) FileNames() []string {
	return sortedKeys(m.Files)
}

// Entry returns the entry of a file.
func (m *Manifest) Entry(file string) (*Entry, bool) {
	entry, ok := m.Files[file]
	return entry, ok
}

// Bands returns the default tolerances keyed by quantity class.
func (m *Manifest) Bands() tolerance.Bands {
	bands := make(tolerance.Bands, len(m.DefaultTolerances))
	for class, band := range m.DefaultTolerances {
		bands[tolerance.Class(strings.ToLower(class))] = band
	}
	return bands
}

// BumpVersion increments the minor version and stamps GeneratedAt.
func (m *Manifest) BumpVersion(now time.Time) error {
	next, err := NextVersion(m.Version)
	if err != nil {
		return err
	}
	m.Version = next
	m.GeneratedAt = now.UTC().Format(time.RFC3339)
	return nil
}

// NextVersion returns version with its minor part incremented. An empty
// version starts at InitialVersion.
func NextVersion(version string) (string, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return InitialVersion, nil
	}
	majorText, minorText, ok := strings.Cut(version, ".")
	if !ok {
		return "", fmt.Errorf("manifest version %q is not MAJOR.MINOR", version)
	}
	major, err := strconv.Atoi(majorText)
	if err != nil || major < 0 {
		return "", fmt.Errorf("manifest version %q has invalid major part", version)
	}
	minor, err := strconv.Atoi(minorText)
	if err != nil || minor < 0 {
		return "", fmt.Errorf("manifest version %q has invalid minor part", version)
	}
	return fmt.Sprintf("%d.%d", major, minor+1), nil
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	out := &Manifest{
		Version:     m.Version,
		Description: m.Description,
		GeneratedAt: m.GeneratedAt,
		Files:       make(map[string]*Entry, len(m.Files)),
	}
	if m.DefaultTolerances != nil {
		out.DefaultTolerances = make(map[string]tolerance.Band, len(m.DefaultTolerances))
		for class, band := range m.DefaultTolerances {
			out.DefaultTolerances[class] = band
		}
	}
	for name, entry := range m.Files {
		out.Files[name] = entry.Clone()
	}
	return out
}

// DeviationCount returns the number of deviations by status.
func (m *Manifest) DeviationCount() map[DeviationStatus]int {
	counts := map[DeviationStatus]int{}
	for _, entry := range m.Files {
		for _, dev := range entry.Deviations {
			counts[dev.Status]++
		}
	}
	return counts
}

// Decode parses a manifest document.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Files == nil {
		m.Files = map[string]*Entry{}
	}
	for name, entry := range m.Files {
		if entry == nil {
			return nil, fmt.Errorf("files.%s: entry is null", name)
		}
	}
	return &m, nil
}

// Encode renders the manifest as indented JSON with a trailing newline.
// Output is byte-identical for equal manifests.
func Encode(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Load reads a manifest from disk.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.MissingInputError{Kind: "manifest", Path: path}
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrParse, "manifest", path, err)
	}
	return m, nil
}

// Save writes the manifest atomically under an advisory lock. An existing
// file is first copied to <path>.bak.
func Save(path string, m *Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	err = fileutil.WithLock(path, func() error {
		exists, err := fileutil.Exists(path)
		if err != nil {
			return err
		}
		if exists {
			if err := fileutil.CopyFile(path, path+".bak"); err != nil {
				return fmt.Errorf("backup manifest: %w", err)
			}
		}
		return fileutil.WriteFileAtomic(path, data, 0o644)
	})
	if errors.Is(err, fileutil.ErrLocked) {
		return apperr.Wrap(apperr.ErrBaselineWriteConflict, "manifest", path, err)
	}
	return err
}

// SortedDeviationFields returns the deviation field names of an entry in order.
func SortedDeviationFields(entry *Entry) []string {
	fields := make([]string, 0, len(entry.Deviations))
	for field := range entry.Deviations {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
