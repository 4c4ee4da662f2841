package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/refmesh/internal/store"
)

// NewStore opens a fresh SQLite store in a temp directory and closes it
// when the test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "refmesh.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
