package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/formula/internal/store"
)

// OpenStore opens a fresh store in a per-test temp directory and closes it
// when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "formula.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
