package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formula/internal/engine"
	"github.com/roach88/formula/internal/store"
)

type replayResponse struct {
	Status string       `json:"status"`
	Data   ReplayResult `json:"data"`
	Error  *CLIError    `json:"error"`
}

// recordRun executes a testdata scenario into dbPath under runID.
func recordRun(t *testing.T, dbPath, scenario, runID string) {
	t.Helper()
	opts := &SearchOptions{
		RootOptions: &RootOptions{Format: "text"},
		RunIDs:      engine.NewFixedGenerator(runID),
	}
	// Failed runs exit non-zero but are still recorded.
	_, _ = executeSearch(t, opts, scenarioPath(scenario), "--db", dbPath)
}

func executeReplay(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := executeReplay(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayNonExistentDatabase(t *testing.T) {
	_, err := executeReplay(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeReplay(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No completed runs found")
}

func TestReplayAllRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	recordRun(t, dbPath, "backtrack", "run-a")
	recordRun(t, dbPath, "underflow", "run-b")

	out, err := executeReplay(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ok run-a (halted, 4 command(s))")
	assert.Contains(t, out, "ok run-b (failed, 3 command(s))")
}

func TestReplaySingleRunJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	recordRun(t, dbPath, "backtrack", "run-a")
	recordRun(t, dbPath, "underflow", "run-b")

	out, err := executeReplay(t, "json", "--db", dbPath, "run-b")
	require.NoError(t, err)

	var resp replayResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "run-b", resp.Data.Runs[0].RunID)
	assert.True(t, resp.Data.Runs[0].Deterministic)
}

func TestReplayDetectsTamperedOutcome(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	recordRun(t, dbPath, "backtrack", "run-a")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE outcomes SET steps = 99 WHERE run_id = ?`, "run-a")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := executeReplay(t, "text", "--db", dbPath, "run-a")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "MISMATCH run-a")
	assert.Contains(t, out, "steps: recorded 99, replayed 4")
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	recordRun(t, dbPath, "backtrack", "run-a")

	out, err := executeReplay(t, "text", "--db", dbPath, "run-zzz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}
