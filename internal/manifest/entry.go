package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Tier names one level of expected-value authority.
type Tier string

const (
	// TierConfirmed holds values confirmed against the new pipeline.
	TierConfirmed Tier = "csharpExpected"
	// TierLegacy holds values taken from the legacy export.
	TierLegacy Tier = "vbaBaseline"
	// TierInline holds values written directly on the entry.
	TierInline Tier = "top-level"
)

// Precedence lists tiers from highest to lowest authority.
var Precedence = []Tier{TierConfirmed, TierLegacy, TierInline}

func nestedTier(name string) (Tier, bool) {
	for _, tier := range Precedence {
		if tier != TierInline && string(tier) == name {
			return tier, true
		}
	}
	return "", false
}

// DeviationStatus classifies a documented deviation.
type DeviationStatus string

const (
	DeviationNotImplemented DeviationStatus = "NOT_IMPLEMENTED"
	DeviationIntentional    DeviationStatus = "INTENTIONAL"
	DeviationBug            DeviationStatus = "BUG"
)

// Valid reports whether s is a known status.
func (s DeviationStatus) Valid() bool {
	switch s {
	case DeviationNotImplemented, DeviationIntentional, DeviationBug:
		return true
	}
	return false
}

// Deviation documents a known mismatch for one field.
type Deviation struct {
	Reason string          `json:"reason"`
	Status DeviationStatus `json:"status"`
	// Auto marks deviations added by the builder; only these are pruned.
	Auto bool `json:"auto,omitempty"`
}

const (
	keyShouldPass     = "shouldPass"
	keyClassification = "expectedClassification"
	keyDeviations     = "knownDeviations"
)

// Entry holds the expectations for one file.
type Entry struct {
	ShouldPass             bool
	ExpectedClassification string
	// Inline is the lowest tier, stored as top-level keys of the entry.
	Inline *FieldSet
	// Deviations is keyed by flattened field name.
	Deviations map[string]Deviation

	tiers map[Tier]*FieldSet
	extra map[string]json.RawMessage
}

// NewEntry returns an entry with no nested tiers.
func NewEntry(shouldPass bool) *Entry {
	return &Entry{
		ShouldPass: shouldPass,
		Inline:     NewFieldSet(),
		Deviations: map[string]Deviation{},
		tiers:      map[Tier]*FieldSet{},
	}
}

// Tier returns the field set of a tier or nil when it is not tracked.
func (e *Entry) Tier(tier Tier) *FieldSet {
	if tier == TierInline {
		return e.Inline
	}
	return e.tiers[tier]
}

// SetTier replaces a nested tier. A nil set stops tracking it.
func (e *Entry) SetTier(tier Tier, set *FieldSet) {
	if tier == TierInline {
		if set == nil {
			set = NewFieldSet()
		}
		e.Inline = set
		return
	}
	if e.tiers == nil {
		e.tiers = map[Tier]*FieldSet{}
	}
	if set == nil {
		delete(e.tiers, tier)
		return
	}
	e.tiers[tier] = set
}

// EnsureTier returns a tier, creating it empty when untracked.
func (e *Entry) EnsureTier(tier Tier) *FieldSet {
	if set := e.Tier(tier); set != nil {
		return set
	}
	set := NewFieldSet()
	e.SetTier(tier, set)
	return set
}

// Resolve returns the expected value of a field from the highest tier that
// defines it.
func (e *Entry) Resolve(field string) (Value, Tier, bool) {
	for _, tier := range Precedence {
		if value, ok := e.Tier(tier).Lookup(field); ok {
			return value, tier, true
		}
	}
	return Value{}, "", false
}

// Fields returns the sorted union of flattened field names over all tiers.
func (e *Entry) Fields() []string {
	seen := map[string]struct{}{}
	for _, tier := range Precedence {
		for name := range e.Tier(tier).Flatten() {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deviation returns the documented deviation for a field.
func (e *Entry) Deviation(field string) (Deviation, bool) {
	dev, ok := e.Deviations[field]
	return dev, ok
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	out := NewEntry(e.ShouldPass)
	out.ExpectedClassification = e.ExpectedClassification
	out.Inline = e.Inline.Clone()
	if out.Inline == nil {
		out.Inline = NewFieldSet()
	}
	for tier, set := range e.tiers {
		out.tiers[tier] = set.Clone()
	}
	for field, dev := range e.Deviations {
		out.Deviations[field] = dev
	}
	if len(e.extra) > 0 {
		out.extra = make(map[string]json.RawMessage, len(e.extra))
		for key, raw := range e.extra {
			out.extra[key] = raw
		}
	}
	return out
}

// MarshalJSON writes keys in a fixed order: shouldPass, expectedClassification,
// inline scalars, inline routing, unrecognized keys, nested tiers from lowest
// to highest authority, then knownDeviations.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		name, _ := json.Marshal(key)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(encoded)
		return nil
	}

	if err := write(keyShouldPass, e.ShouldPass); err != nil {
		return nil, err
	}
	if e.ExpectedClassification != "" {
		if err := write(keyClassification, e.ExpectedClassification); err != nil {
			return nil, err
		}
	}
	if e.Inline != nil {
		for _, name := range sortedKeys(e.Inline.Scalars) {
			if err := write(name, e.Inline.Scalars[name]); err != nil {
				return nil, err
			}
		}
		if len(e.Inline.Routing) > 0 {
			if err := write(routingKey, e.Inline.Routing); err != nil {
				return nil, err
			}
		}
	}
	for _, key := range sortedKeys(e.extra) {
		if err := write(key, e.extra[key]); err != nil {
			return nil, err
		}
	}
	for i := len(Precedence) - 1; i >= 0; i-- {
		tier := Precedence[i]
		if tier == TierInline {
			continue
		}
		if set := e.tiers[tier]; set != nil {
			if err := write(string(tier), set); err != nil {
				return nil, err
			}
		}
	}
	if len(e.Deviations) > 0 {
		if err := write(keyDeviations, e.Deviations); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("manifest entry must be an object")
	}
	out := NewEntry(false)
	for key, msg := range raw {
		switch key {
		case keyShouldPass:
			if err := json.Unmarshal(msg, &out.ShouldPass); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		case keyClassification:
			if err := json.Unmarshal(msg, &out.ExpectedClassification); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		case keyDeviations:
			if err := json.Unmarshal(msg, &out.Deviations); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if out.Deviations == nil {
				out.Deviations = map[string]Deviation{}
			}
			for field, dev := range out.Deviations {
				if !dev.Status.Valid() {
					return fmt.Errorf("%s.%s: unknown status %q", key, field, dev.Status)
				}
			}
		case routingKey:
			if err := json.Unmarshal(msg, &out.Inline.Routing); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if out.Inline.Routing == nil {
				out.Inline.Routing = map[string]RoutingOp{}
			}
		default:
			if tier, ok := nestedTier(key); ok {
				if string(bytes.TrimSpace(msg)) == "null" {
					continue
				}
				set := NewFieldSet()
				if err := json.Unmarshal(msg, set); err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				out.tiers[tier] = set
				continue
			}
			if value, ok := ParseValue(msg); ok {
				out.Inline.Scalars[key] = value
				continue
			}
			if out.extra == nil {
				out.extra = map[string]json.RawMessage{}
			}
			out.extra[key] = append(json.RawMessage(nil), msg...)
		}
	}
	*e = *out
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
