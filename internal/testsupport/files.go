package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleExport is a small legacy export: part P100 with a material row, two
// routing operations and a note, plus assembly A900 that uses P100 twice.
const SampleExport = `DECL(IM) ADD IM-KEY IM-DESCR IM-TYPE IM-WEIGHT IM-COST
END
P100 "Bracket, left" PART 1.25 4.5
A900 "Frame" ASSY 10 40

DECL(PS) ADD PS-PARENT-KEY PS-SUBORD-KEY PS-QTY-P PS-DIM-1 PS-DIM-2
END
P100 STEEL-10 1.5 120 40

DECL(PS) ADD PS-PARENT-KEY PS-SUBORD-KEY PS-QTY-P
END
A900 P100 2

DECL(RT) ADD RT-ITEM-KEY RT-OP-NUM RT-WC-KEY RT-SETUP RT-RUN
END
P100 10 N120 6 1.2
P100 20 F210 30 0.6

DECL(RN) ADD RN-ITEM-KEY RN-OP-NUM RN-TEXT
END
P100 20 "deburr all edges"
`

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Touch creates empty files for each relative name under dir.
func Touch(t testing.TB, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		WriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), "")
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
