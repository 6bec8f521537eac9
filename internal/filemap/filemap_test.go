package filemap_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"partrecon/internal/apperr"
	"partrecon/internal/filemap"
)

func TestLookup(t *testing.T) {
	files := []string{"P100.SLDPRT", "P200-REV-B.SLDPRT", "P300-A.SLDPRT", "P300-B.SLDPRT", "p400.sldasm"}
	mapper, err := filemap.New(files, filemap.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		key           string
		wantFile      string
		wantOK        bool
		wantAmbiguous bool
	}{
		{key: "P100", wantFile: "P100.SLDPRT", wantOK: true},
		{key: "P400", wantFile: "p400.sldasm", wantOK: true},
		{key: "P200", wantFile: "P200-REV-B.SLDPRT", wantOK: true},
		{key: "P300", wantFile: "P300-A.SLDPRT", wantOK: true, wantAmbiguous: true},
		{key: "P999", wantOK: false},
		{key: "  ", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			file, ambiguous, ok := mapper.Lookup(tt.key)
			if ok != tt.wantOK || file != tt.wantFile {
				t.Fatalf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.key, file, ok, tt.wantFile, tt.wantOK)
			}
			if (ambiguous != nil) != tt.wantAmbiguous {
				t.Fatalf("Lookup(%q) ambiguous = %v, want %v", tt.key, ambiguous, tt.wantAmbiguous)
			}
		})
	}
}

func TestExactMatchBeatsEarlierPrefix(t *testing.T) {
	mapper, err := filemap.New([]string{"P100-OLD.SLDPRT", "P100.SLDPRT"}, filemap.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	file, ambiguous, ok := mapper.Lookup("p100")
	if !ok || file != "P100.SLDPRT" || ambiguous != nil {
		t.Fatalf("Lookup = (%q, %v, %v)", file, ambiguous, ok)
	}
}

func TestLookupWithoutListing(t *testing.T) {
	mapper, err := filemap.New(nil, filemap.Options{DefaultExtension: "SLDPRT"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	file, _, ok := mapper.Lookup("P100")
	if !ok || file != "P100.SLDPRT" {
		t.Fatalf("Lookup = (%q, %v), want P100.SLDPRT", file, ok)
	}
	if mapper.HasListing() {
		t.Fatal("mapper without files should not report a listing")
	}
}

func TestMapExclusions(t *testing.T) {
	mapper, err := filemap.New([]string{"P100.SLDPRT", "P300-A.SLDPRT", "P300-B.SLDPRT"}, filemap.Options{
		SecondaryKeys: []string{"*-DUP"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := mapper.Map([]string{"P300", "A900", "P100-DUP", "P100", "P777"}, map[string]bool{"A900": true})
	want := filemap.Mapping{
		Mapped:   map[string]string{"P100": "P100.SLDPRT", "P300": "P300-A.SLDPRT"},
		Unmapped: []string{"P777"},
		Ambiguous: []filemap.AmbiguousKeyError{
			{Key: "P300", Chosen: "P300-A.SLDPRT", Candidates: []string{"P300-A.SLDPRT", "P300-B.SLDPRT"}},
		},
		Excluded: []string{"A900", "P100-DUP"},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("Map mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	if _, err := filemap.New(nil, filemap.Options{SecondaryKeys: []string{"[unclosed"}}); err == nil {
		t.Fatal("expected invalid pattern error")
	}
}

func TestListDir(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"b/P200.SLDPRT", "P100.SLDPRT", "a/P300.sldasm", "notes.txt", "b/dup/P100.SLDPRT"} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	got, err := filemap.ListDir(root, []string{"**/*.{SLDPRT,sldasm}"})
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	want := []string{"P100.SLDPRT", "P300.sldasm", "P200.SLDPRT"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ListDir mismatch (-want +got):\n%s", diff)
	}

	if _, err := filemap.ListDir(filepath.Join(root, "missing"), nil); !errors.Is(err, apperr.ErrMissingInput) {
		t.Fatalf("expected missing input error, got %v", err)
	}
}

func TestReadListing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listing.txt")
	content := "# exported from vault\nZ9.SLDPRT\n\nparts\\A1.SLDPRT\nZ9.SLDPRT\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write listing: %v", err)
	}
	got, err := filemap.ReadListing(path)
	if err != nil {
		t.Fatalf("ReadListing: %v", err)
	}
	if diff := cmp.Diff([]string{"Z9.SLDPRT", "A1.SLDPRT"}, got); diff != "" {
		t.Fatalf("ReadListing mismatch (-want +got):\n%s", diff)
	}
}
