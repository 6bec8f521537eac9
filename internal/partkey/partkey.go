// Package partkey extracts the owning part key from legacy export records.
//
// Each section code has an ordered list of rules. A rule with a When field
// applies only to records whose section declares that field, which is how the
// two PS sub-types (material relationship and bill of materials) are told
// apart before any key is read.
package partkey

import (
	"strings"

	"partrecon/internal/flatfile"
)

// Kind names the role a record plays for its part.
type Kind string

const (
	KindItemMaster   Kind = "item_master"
	KindMaterial     Kind = "material"
	KindBOM          Kind = "bom"
	KindRouting      Kind = "routing"
	KindRoutingNote  Kind = "routing_note"
	KindUnrecognized Kind = ""
)

// Rule maps records of one section sub-type to their key fields.
type Rule struct {
	Kind Kind
	// When names a field the section must declare for the rule to apply.
	// Empty matches every record of the section.
	When string
	// Candidates are tried in order; the first non-empty value wins.
	Candidates []string
}

// Resolver holds ordered rules per section code.
type Resolver struct {
	rules map[string][]Rule
}

// New builds a resolver from rules keyed by section code.
func New(rules map[string][]Rule) *Resolver {
	copied := make(map[string][]Rule, len(rules))
	for code, list := range rules {
		copied[code] = append([]Rule(nil), list...)
	}
	return &Resolver{rules: copied}
}

// DefaultRules returns the rules for the legacy export schema.
func DefaultRules() map[string][]Rule {
	return map[string][]Rule{
		"IM": {
			{Kind: KindItemMaster, Candidates: []string{"IM-KEY"}},
		},
		"PS": {
			{Kind: KindMaterial, When: "PS-DIM-1", Candidates: []string{"PS-PARENT-KEY"}},
			{Kind: KindBOM, Candidates: []string{"PS-SUBORD-KEY"}},
		},
		"RT": {
			{Kind: KindRouting, Candidates: []string{"RT-ITEM-KEY"}},
		},
		"RN": {
			{Kind: KindRoutingNote, Candidates: []string{"RN-ITEM-KEY"}},
		},
	}
}

// Default returns a resolver for the legacy export schema.
func Default() *Resolver {
	return New(DefaultRules())
}

// Classify returns the kind of the first rule whose When condition holds,
// without reading the key.
func (r *Resolver) Classify(record flatfile.Record) (Rule, bool) {
	for _, rule := range r.rules[record.Section()] {
		if rule.When == "" || record.Declares(rule.When) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Resolve returns the part key of a record and the kind of the matching rule.
// ok is false when no rule applies or every candidate is empty; keys are never
// synthesized.
func (r *Resolver) Resolve(record flatfile.Record) (string, Kind, bool) {
	rule, found := r.Classify(record)
	if !found {
		return "", KindUnrecognized, false
	}
	for _, field := range rule.Candidates {
		if value := strings.TrimSpace(record.Value(field)); value != "" {
			return value, rule.Kind, true
		}
	}
	return "", rule.Kind, false
}
