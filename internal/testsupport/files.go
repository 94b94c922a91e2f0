package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SeedFile writes content to the target path, creating parent
// directories as needed.
func SeedFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SeedUpload drops a fake received image into dir and returns its path.
func SeedUpload(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	SeedFile(t, path, []byte("\x89PNG fake image bytes"))
	return path
}
