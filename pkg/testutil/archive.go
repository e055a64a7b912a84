package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipBytes builds an in-memory zip from name→content entries. Names ending in
// "/" become directory entries.
func ZipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to add %s to zip: %v", name, err)
		}
		if _, err := f.Write([]byte(entries[name])); err != nil {
			t.Fatalf("Failed to write %s to zip: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
	return buf.Bytes()
}

// CreateZip writes a zip archive with the given entries to dir/name.
func CreateZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create parent directories for %s: %v", path, err)
	}
	if err := os.WriteFile(path, ZipBytes(t, entries), 0644); err != nil {
		t.Fatalf("Failed to write zip %s: %v", path, err)
	}
	return path
}
