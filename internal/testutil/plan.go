package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WritePlan writes a plan file under dir and returns its path. Parent
// directories in name are created.
func WritePlan(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
