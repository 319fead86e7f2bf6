package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteScanGroup writes a <name>.1D/.1R/.1V triplet into dir. The
// disposition file holds code; recto and verso hold placeholder bytes.
func WriteScanGroup(t *testing.T, dir, name, code string) {
	t.Helper()
	WriteScanFile(t, dir, name+".1D", code)
	WriteScanFile(t, dir, name+".1R", "recto "+name)
	WriteScanFile(t, dir, name+".1V", "verso "+name)
}

// WriteScanFile writes one file into dir, failing the test on error.
func WriteScanFile(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write scan file %s: %v", file, err)
	}
	return path
}
