package partkey_test

import (
	"strings"
	"testing"

	"partrecon/internal/flatfile"
	"partrecon/internal/partkey"
)

const export = `DECL(IM) IM-KEY IM-DESCR
END
P100 Bracket
"  " Blank

DECL(PS) PS-PARENT-KEY PS-SUBORD-KEY PS-QTY-P PS-DIM-1
END
P100 STEEL-10 2.5 120

DECL(PS) PS-PARENT-KEY PS-SUBORD-KEY PS-QTY-P
END
A900 P100 2

DECL(RT) RT-ITEM-KEY RT-WC-KEY
END
P100 N120

DECL(RN) RN-ITEM-KEY RN-TEXT
END
P100 "deburr edges"

DECL(ZZ) ZZ-KEY
END
Q1
`

func TestResolveDefaultRules(t *testing.T) {
	doc, err := flatfile.Parse(strings.NewReader(export))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	resolver := partkey.Default()

	tests := []struct {
		name     string
		record   flatfile.Record
		wantKey  string
		wantKind partkey.Kind
		wantOK   bool
	}{
		{name: "item master", record: doc.Records("IM")[0], wantKey: "P100", wantKind: partkey.KindItemMaster, wantOK: true},
		{name: "blank key", record: doc.Records("IM")[1], wantKind: partkey.KindItemMaster, wantOK: false},
		{name: "material uses parent", record: doc.Records("PS")[0], wantKey: "P100", wantKind: partkey.KindMaterial, wantOK: true},
		{name: "bom uses subordinate", record: doc.Records("PS")[1], wantKey: "P100", wantKind: partkey.KindBOM, wantOK: true},
		{name: "routing", record: doc.Records("RT")[0], wantKey: "P100", wantKind: partkey.KindRouting, wantOK: true},
		{name: "routing note", record: doc.Records("RN")[0], wantKey: "P100", wantKind: partkey.KindRoutingNote, wantOK: true},
		{name: "unknown section", record: doc.Records("ZZ")[0], wantKind: partkey.KindUnrecognized, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, kind, ok := resolver.Resolve(tt.record)
			if key != tt.wantKey || kind != tt.wantKind || ok != tt.wantOK {
				t.Fatalf("Resolve = (%q, %q, %v), want (%q, %q, %v)", key, kind, ok, tt.wantKey, tt.wantKind, tt.wantOK)
			}
		})
	}
}

func TestResolveCandidateFallback(t *testing.T) {
	doc, err := flatfile.Parse(strings.NewReader("DECL(XX) A B\nEND\n\"\" K7\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	resolver := partkey.New(map[string][]partkey.Rule{
		"XX": {{Kind: partkey.KindItemMaster, Candidates: []string{"A", "B"}}},
	})
	key, _, ok := resolver.Resolve(doc.Records("XX")[0])
	if !ok || key != "K7" {
		t.Fatalf("expected fallback to B, got %q ok=%v", key, ok)
	}
}
