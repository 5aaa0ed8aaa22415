package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/formula/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
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

// createTestRun writes a running run record with the given ID.
func createTestRun(t *testing.T, s *Store, id string) ir.RunRecord {
	t.Helper()
	run := ir.RunRecord{
		ID:            id,
		Scenario:      "test",
		MaxSteps:      100,
		Status:        ir.RunRunning,
		EngineVersion: ir.EngineVersion,
	}
	require.NoError(t, s.WriteRun(context.Background(), run))
	return run
}

// createTestCommand builds a command record with its content-addressed ID.
func createTestCommand(runID string, seq int64, kind string, incs ...ir.IncrementRecord) ir.CommandRecord {
	cmd := ir.CommandRecord{
		RunID:      runID,
		Seq:        seq,
		Kind:       kind,
		Message:    kind,
		Increments: incs,
	}
	cmd.ID = ir.MustCommandID(cmd)
	return cmd
}
