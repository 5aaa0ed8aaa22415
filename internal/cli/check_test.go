package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formula/internal/compiler"
	"github.com/roach88/formula/internal/store"
)

// checkResponse mirrors CLIResponse with a typed payload.
type checkResponse struct {
	Status string      `json:"status"`
	Data   CheckResult `json:"data"`
	Error  *CLIError   `json:"error"`
}

func executeCheck(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCheckCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCheckValidSpecs(t *testing.T) {
	out, err := executeCheck(t, "text", filepath.Join("testdata", "specs"))
	require.NoError(t, err)

	assert.Contains(t, out, "module Graph: 2 rule(s)")
	assert.Contains(t, out, "module tree: 1 rule(s)", "keyed modules default to their key")
	assert.Contains(t, out, "warning:")
	assert.Contains(t, out, "OK: 2 module(s) checked")
}

func TestCheckValidSpecsJSON(t *testing.T) {
	out, err := executeCheck(t, "json", filepath.Join("testdata", "specs"))
	require.NoError(t, err)

	var resp checkResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Files)
	require.Len(t, resp.Data.Modules, 2)

	byName := map[string]ModuleReport{}
	for _, m := range resp.Data.Modules {
		byName[m.Module] = m
	}
	require.Contains(t, byName, "Graph")
	graph := byName["Graph"]
	assert.Empty(t, graph.Errors)
	require.Len(t, graph.Warnings, 1)
	assert.Equal(t, []string{"Path", "Path"}, graph.Warnings[0].Path)
	assert.Empty(t, byName["tree"].Warnings)
}

func TestCheckUnsafeRule(t *testing.T) {
	out, err := executeCheck(t, "text", filepath.Join("testdata", "unsafe"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "[E201]")
	assert.Contains(t, out, "rules.unsafe.body[1]: unsafe variables: y")
	assert.Contains(t, out, "FAIL: 1 error(s)")
}

func TestCheckUnsafeRuleJSON(t *testing.T) {
	out, err := executeCheck(t, "json", filepath.Join("testdata", "unsafe"))
	require.Error(t, err)

	var resp checkResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnsafeRule, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.ErrorCount)

	require.Len(t, resp.Data.Modules, 1)
	ve := resp.Data.Modules[0].Errors[0]
	assert.Equal(t, "Graph", resp.Data.Modules[0].Module)
	assert.Equal(t, "rules.unsafe.body[1]", ve.Field)
	assert.True(t, ve.Pos.IsValid(), "diagnostics carry source positions")
}

func TestCheckRecordsDiagnostics(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "check.db")
	dir := filepath.Join("testdata", "unsafe")

	_, err := executeCheck(t, "text", dir, "--db", dbPath)
	require.Error(t, err)
	// Rechecking unchanged specs is idempotent.
	_, err = executeCheck(t, "text", dir, "--db", dbPath)
	require.Error(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	diags, err := st.ReadDiagnostics(context.Background(), "Graph")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, compiler.ErrUnsafeRule, diags[0].Code)
	assert.Equal(t, "unsafe variables: y", diags[0].Message)
	assert.Len(t, diags[0].ID, 64)
}

func TestCheckCompileError(t *testing.T) {
	dir := t.TempDir()
	src := `package bad

module: "Bad"
rules: r: {body: []}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0o644))

	out, err := executeCheck(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[E007]")
	assert.Contains(t, out, "head is required")
}

func TestCheckCommandErrors(t *testing.T) {
	empty := t.TempDir()
	noModules := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(noModules, "x.cue"), []byte("package x\n\nname: \"x\"\n"), 0o644))

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing directory", "/nonexistent/specs", ErrCodeNotFound},
		{"no cue files", empty, ErrCodeNoFiles},
		{"no modules", noModules, ErrCodeNoModules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCheck(t, "text", tt.dir)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestLoadSpecsFailFast(t *testing.T) {
	dir := t.TempDir()
	src := `package two

a: {rules: r: {body: []}}
b: {rules: r: {body: []}}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.cue"), []byte(src), 0o644))

	_, errs := LoadSpecs(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)

	result, errs := LoadSpecs(dir, LoadModeCollectAll)
	require.NotNil(t, result)
	assert.Len(t, errs, 2)
	assert.Empty(t, result.Programs)
}
