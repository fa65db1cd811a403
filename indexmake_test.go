package recidx

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// buildDataFile writes n one-line records, each the mark byte '#', a key
// of i zero-padded to keySize digits, and a payload; for keySize 5 the
// keys run "00000".."<n-1 padded to 5 digits>".
func buildDataFile(t *testing.T, dir string, n int, keySize int) string {
	t.Helper()
	path := filepath.Join(dir, "data.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create data file: %v", err)
	}
	defer f.Close()

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%0*d", keySize, i)
		line := "#" + key + " payload for record " + key + "\n"
		if _, err := f.WriteString(line); err != nil {
			t.Fatalf("write data line: %v", err)
		}
	}
	return path
}

// TestBuildIndexSS exercises the §4.5 driver end to end against the
// SS backend: every record's key resolves to its line's byte offset,
// and the reported stats match the number of records scanned.
func TestBuildIndexSS(t *testing.T) {
	dir := t.TempDir()
	const n, keySize = 50, 5
	dataPath := buildDataFile(t, dir, n, keySize)
	idxPath := filepath.Join(dir, "data.idx")

	stats, err := BuildIndex(BackendSS, idxPath, dataPath, keySize, 20, Config{KeyMark: '#'})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if stats.RecordCount != n {
		t.Errorf("RecordCount = %d, want %d", stats.RecordCount, n)
	}
	if stats.Duplicates != 0 {
		t.Errorf("Duplicates = %d, want 0", stats.Duplicates)
	}

	h, err := Open(BackendSS, idxPath, ReadOnly, Config{})
	if err != nil {
		t.Fatalf("Open built index: %v", err)
	}
	defer h.Close()

	df, err := os.Open(dataPath)
	if err != nil {
		t.Fatalf("reopen data file: %v", err)
	}
	defer df.Close()

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%0*d", keySize, i)
		offset, err := h.Find(key)
		if err != nil {
			t.Fatalf("Find(%s): %v", key, err)
		}
		buf := make([]byte, keySize+1)
		if _, err := df.ReadAt(buf, int64(offset)); err != nil {
			t.Fatalf("ReadAt(%d): %v", offset, err)
		}
		want := "#" + key
		if string(buf) != want {
			t.Errorf("record at offset %d = %q, want %q", offset, buf, want)
		}
	}
}

// TestBuildIndexTriggersResize uses a deliberately tiny initial
// capacity so the driver's load-poll-and-resize loop must fire at
// least once during the build.
func TestBuildIndexTriggersResize(t *testing.T) {
	dir := t.TempDir()
	const n, keySize = 200, 4
	dataPath := buildDataFile(t, dir, n, keySize)
	idxPath := filepath.Join(dir, "data.idx")

	stats, err := BuildIndex(BackendSS, idxPath, dataPath, keySize, 10, Config{KeyMark: '#'})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if stats.Resizes == 0 {
		t.Errorf("Resizes = 0, want at least 1 for %d records seeded at capacity 10", n)
	}
	if stats.RecordCount != n {
		t.Errorf("RecordCount = %d, want %d", stats.RecordCount, n)
	}
}

// TestBuildIndexWritesMetaSidecar confirms the optional
// WriteMetaSidecar config flag produces a readable JSON file.
func TestBuildIndexWritesMetaSidecar(t *testing.T) {
	dir := t.TempDir()
	dataPath := buildDataFile(t, dir, 10, 4)
	idxPath := filepath.Join(dir, "data.idx")

	if _, err := BuildIndex(BackendSS, idxPath, dataPath, 4, 20, Config{KeyMark: '#', WriteMetaSidecar: true}); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	meta, err := os.ReadFile(idxPath + ".meta.json")
	if err != nil {
		t.Fatalf("read meta sidecar: %v", err)
	}
	if len(meta) == 0 {
		t.Error("meta sidecar is empty")
	}
}

func TestExtractKeyPadsAndTruncates(t *testing.T) {
	if got := extractKey("#abc\n", 5); got != "abc  " {
		t.Errorf("extractKey short line = %q, want %q", got, "abc  ")
	}
	if got := extractKey("#abcdefgh\n", 3); got != "abc" {
		t.Errorf("extractKey long line = %q, want %q", got, "abc")
	}
}
