package baseline

import (
	"sort"

	"partrecon/internal/flatfile"
	"partrecon/internal/partkey"
)

// Anomaly is a legacy record that could not be attributed to a part.
type Anomaly struct {
	Section string `json:"section"`
	Line    int    `json:"line"`
	Reason  string `json:"reason"`
}

// legacyPart collects every legacy record of one part key.
type legacyPart struct {
	key       string
	items     []flatfile.Record
	materials []flatfile.Record
	bom       []flatfile.Record
	routing   []flatfile.Record
	notes     []flatfile.Record
}

type grouping struct {
	parts     map[string]*legacyPart
	topLevel  map[string]bool
	anomalies []Anomaly
}

func (g *grouping) keys() []string {
	keys := make([]string, 0, len(g.parts))
	for key := range g.parts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// groupRecords attributes every record to its part key. Top-level assemblies
// are BOM parents that never appear as a BOM child.
func groupRecords(doc *flatfile.Document, resolver *partkey.Resolver) *grouping {
	g := &grouping{parts: map[string]*legacyPart{}, topLevel: map[string]bool{}}
	parents := map[string]bool{}
	children := map[string]bool{}

	part := func(key string) *legacyPart {
		p, ok := g.parts[key]
		if !ok {
			p = &legacyPart{key: key}
			g.parts[key] = p
		}
		return p
	}

	for _, record := range doc.All() {
		key, kind, ok := resolver.Resolve(record)
		if !ok {
			reason := "no part key"
			if kind == partkey.KindUnrecognized {
				reason = "unrecognized section"
			}
			g.anomalies = append(g.anomalies, Anomaly{Section: record.Section(), Line: record.Line(), Reason: reason})
			continue
		}
		p := part(key)
		switch kind {
		case partkey.KindItemMaster:
			p.items = append(p.items, record)
		case partkey.KindMaterial:
			p.materials = append(p.materials, record)
		case partkey.KindBOM:
			p.bom = append(p.bom, record)
			children[key] = true
			if parent := trimmed(record, fieldBOMParent); parent != "" {
				parents[parent] = true
			}
		case partkey.KindRouting:
			p.routing = append(p.routing, record)
		case partkey.KindRoutingNote:
			p.notes = append(p.notes, record)
		}
	}
	for parent := range parents {
		if !children[parent] {
			g.topLevel[parent] = true
		}
	}
	return g
}
