package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"partrecon/internal/apperr"
	"partrecon/internal/manifest"
)

const sampleManifest = `{
  "version": "2.3",
  "description": "baseline",
  "defaultTolerances": {"length": {"relative": 0.01, "minAbs": 0.001}},
  "files": {
    "P100.SLDPRT": {
      "shouldPass": true,
      "expectedClassification": "SheetMetal",
      "thickness": 0.2,
      "material": "Steel",
      "notes": ["kept as-is"],
      "vbaBaseline": {
        "thickness": 0.105,
        "routing": {"N120": {"setup": 0.1, "run": 0.02}}
      },
      "csharpExpected": {"thickness": 0.10},
      "knownDeviations": {
        "F210_Run": {"reason": "not ported", "status": "NOT_IMPLEMENTED", "auto": true}
      }
    },
    "A900.SLDASM": {
      "shouldPass": false,
      "vbaBaseline": {}
    }
  }
}`

func TestResolveTierPrecedence(t *testing.T) {
	m, err := manifest.Decode([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	entry, ok := m.Entry("P100.SLDPRT")
	if !ok {
		t.Fatal("missing entry")
	}

	tests := []struct {
		field    string
		want     string
		wantTier manifest.Tier
	}{
		{field: "thickness", want: "0.1", wantTier: manifest.TierConfirmed},
		{field: "N120_Setup", want: "0.1", wantTier: manifest.TierLegacy},
		{field: "N120_Run", want: "0.02", wantTier: manifest.TierLegacy},
		{field: "material", want: "Steel", wantTier: manifest.TierInline},
	}
	for _, tt := range tests {
		value, tier, ok := entry.Resolve(tt.field)
		if !ok || value.String() != tt.want || tier != tt.wantTier {
			t.Fatalf("Resolve(%q) = (%s, %s, %v), want (%s, %s)", tt.field, value, tier, ok, tt.want, tt.wantTier)
		}
	}
	if _, _, ok := entry.Resolve("F210_Run"); ok {
		t.Fatal("deviation-only field should not resolve")
	}

	want := []string{"N120_Run", "N120_Setup", "material", "thickness"}
	if diff := cmp.Diff(want, entry.Fields()); diff != "" {
		t.Fatalf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackedVersusUntrackedTiers(t *testing.T) {
	m, err := manifest.Decode([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	entry := m.Files["A900.SLDASM"]
	legacy := entry.Tier(manifest.TierLegacy)
	if legacy == nil || legacy.Len() != 0 {
		t.Fatalf("expected tracked empty legacy tier, got %+v", legacy)
	}
	if entry.Tier(manifest.TierConfirmed) != nil {
		t.Fatal("absent tier must stay untracked")
	}

	data, err := manifest.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"vbaBaseline": {}`) {
		t.Fatalf("empty tier not preserved:\n%s", data)
	}
}

func TestEncodeRoundTripIsStable(t *testing.T) {
	m, err := manifest.Decode([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	first, err := manifest.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	again, err := manifest.Decode(first)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	second, err := manifest.Encode(again)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Fatalf("encoding not stable (-first +second):\n%s", diff)
	}
	if !strings.Contains(string(first), `"notes": [`) {
		t.Fatalf("unrecognized key dropped:\n%s", first)
	}
	if strings.Index(string(first), `"vbaBaseline"`) > strings.Index(string(first), `"csharpExpected"`) {
		t.Fatal("tiers should be written from lowest to highest authority")
	}
}

func TestDecodeRejectsUnknownDeviationStatus(t *testing.T) {
	doc := `{"version":"1.0","files":{"X":{"shouldPass":true,"knownDeviations":{"a":{"reason":"r","status":"LATER"}}}}}`
	if _, err := manifest.Decode([]byte(doc)); err == nil {
		t.Fatal("expected error for unknown deviation status")
	}
}

func TestNextVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "1.0"},
		{in: "1.0", want: "1.1"},
		{in: "2.9", want: "2.10"},
		{in: "3", wantErr: true},
		{in: "a.b", wantErr: true},
	}
	for _, tt := range tests {
		got, err := manifest.NextVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("NextVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("NextVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBumpVersionStampsTime(t *testing.T) {
	m := manifest.New("test")
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := m.BumpVersion(now); err != nil {
		t.Fatalf("BumpVersion: %v", err)
	}
	if m.Version != "1.1" || m.GeneratedAt != "2026-03-04T05:06:07Z" {
		t.Fatalf("got version %q generatedAt %q", m.Version, m.GeneratedAt)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline", "manifest.json")

	m := manifest.New("first")
	entry := manifest.NewEntry(true)
	entry.EnsureTier(manifest.TierLegacy).Set("weight", manifest.Number(1.25))
	entry.Deviations["weight"] = manifest.Deviation{Reason: "unit change", Status: manifest.DeviationIntentional}
	m.Files["P100.SLDPRT"] = entry
	if err := manifest.Save(path, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m.Description = "second"
	if err := manifest.Save(path, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !strings.Contains(string(backup), `"first"`) {
		t.Fatalf("backup should hold previous manifest:\n%s", backup)
	}

	loaded, err := manifest.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Description != "second" {
		t.Fatalf("description = %q", loaded.Description)
	}
	value, tier, ok := loaded.Files["P100.SLDPRT"].Resolve("weight")
	if !ok || tier != manifest.TierLegacy || value.String() != "1.25" {
		t.Fatalf("Resolve(weight) = (%s, %s, %v)", value, tier, ok)
	}
	if dev, ok := loaded.Files["P100.SLDPRT"].Deviation("weight"); !ok || dev.Status != manifest.DeviationIntentional {
		t.Fatalf("deviation lost: %+v", dev)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := manifest.Load(filepath.Join(dir, "absent.json")); !errors.Is(err, apperr.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := manifest.Load(bad); !errors.Is(err, apperr.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestValueJSON(t *testing.T) {
	var v manifest.Value
	if err := v.UnmarshalJSON([]byte(`"0.5"`)); err != nil || !v.IsText() {
		t.Fatalf("quoted number should stay text: %v %v", v, err)
	}
	if err := v.UnmarshalJSON([]byte(`true`)); err != nil || !v.IsText() || v.String() != "true" {
		t.Fatalf("booleans should read as text: %v %v", v, err)
	}
	if err := v.UnmarshalJSON([]byte(`[1]`)); err == nil {
		t.Fatal("lists are not manifest values")
	}
	if got := manifest.Number(0.123456).Round(3).String(); got != "0.123" {
		t.Fatalf("Round = %s", got)
	}
	if got, ok := manifest.Text(" 0.10500 ").Numeric().Float(); !ok || got != 0.105 {
		t.Fatalf("Numeric = %v %v", got, ok)
	}
	if !manifest.Text("Inf").Numeric().IsText() || !manifest.Bool(true).Numeric().IsText() {
		t.Fatal("non-finite text and booleans stay text")
	}
}

func TestDecodeBooleanFields(t *testing.T) {
	doc := `{"version": "1.0", "files": {"P100.SLDPRT": {
	  "shouldPass": true,
	  "isSheetMetal": true,
	  "csharpExpected": {"isFlat": false, "thickness": 0.1}
	}}}`
	m, err := manifest.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	entry := m.Files["P100.SLDPRT"]
	if got := entry.Inline.Scalars["isSheetMetal"].String(); got != "true" {
		t.Fatalf("inline isSheetMetal = %q", got)
	}
	if got := entry.Tier(manifest.TierConfirmed).Scalars["isFlat"].String(); got != "false" {
		t.Fatalf("confirmed isFlat = %q", got)
	}

	data, err := manifest.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, want := range []string{`"isSheetMetal": true`, `"isFlat": false`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %s in encoded manifest:\n%s", want, data)
		}
	}
}
