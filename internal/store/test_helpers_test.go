package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/refmesh/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRef creates a ref with minimal content.
func createTestRef(url, origin, comment string) ir.Ref {
	return ir.Ref{
		URL:     url,
		Origin:  origin,
		Title:   "title of " + url,
		Comment: comment,
		Tags:    []string{"public"},
	}
}
