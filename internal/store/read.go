package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/formula/internal/ir"
)

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ReadRun retrieves a single run by ID.
// Returns ErrNotFound if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, max_steps, status, engine_version
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RunRecord{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// ListRuns returns all recorded runs ordered by ID.
// UUIDv7 IDs make this creation order.
func (s *Store) ListRuns(ctx context.Context) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, max_steps, status, engine_version
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadCommands returns the command stream of a run.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the run has no commands.
func (s *Store) ReadCommands(ctx context.Context, runID string) ([]ir.CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, kind, message, increments
		FROM commands
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	cmds := []ir.CommandRecord{}
	for rows.Next() {
		var (
			cmd      ir.CommandRecord
			incsJSON string
		)
		if err := rows.Scan(&cmd.ID, &cmd.RunID, &cmd.Seq, &cmd.Kind, &cmd.Message, &incsJSON); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		cmd.Increments, err = unmarshalIncrements(incsJSON)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", cmd.ID, err)
		}
		cmds = append(cmds, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return cmds, nil
}

// ReadOutcome retrieves the final state of a run.
// Returns ErrNotFound if the run has not finished.
func (s *Store) ReadOutcome(ctx context.Context, runID string) (ir.OutcomeRecord, error) {
	var (
		out    ir.OutcomeRecord
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, status, steps, depth, config_hash, error_code, error_message
		FROM outcomes
		WHERE run_id = ?
	`, runID).Scan(&out.RunID, &status, &out.Steps, &out.Depth, &out.ConfigHash, &out.ErrorCode, &out.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.OutcomeRecord{}, fmt.Errorf("read outcome %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return ir.OutcomeRecord{}, fmt.Errorf("read outcome: %w", err)
	}
	out.Status = ir.RunStatus(status)
	return out, nil
}

// ReadDiagnostics returns the findings recorded for a module, ordered by
// code, field and ID.
//
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadDiagnostics(ctx context.Context, module string) ([]ir.DiagnosticRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module, code, field, message, file, line, col
		FROM diagnostics
		WHERE module = ?
		ORDER BY code ASC, field COLLATE BINARY ASC, id COLLATE BINARY ASC
	`, module)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []ir.DiagnosticRecord{}
	for rows.Next() {
		var d ir.DiagnosticRecord
		if err := rows.Scan(&d.ID, &d.Module, &d.Code, &d.Field, &d.Message, &d.File, &d.Line, &d.Column); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

func scanRun(row scanner) (ir.RunRecord, error) {
	var (
		run    ir.RunRecord
		status string
	)
	if err := row.Scan(&run.ID, &run.Scenario, &run.MaxSteps, &status, &run.EngineVersion); err != nil {
		return ir.RunRecord{}, err
	}
	run.Status = ir.RunStatus(status)
	return run, nil
}
