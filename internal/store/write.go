package store

import (
	"context"
	"fmt"

	"github.com/roach88/formula/internal/ir"
)

// WriteRun inserts a run record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run ir.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, max_steps, status, engine_version, record_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scenario,
		run.MaxSteps,
		string(run.Status),
		run.EngineVersion,
		ir.RecordVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// UpdateRunStatus moves a run to its final status.
// Returns ErrNotFound if the run does not exist.
func (s *Store) UpdateRunStatus(ctx context.Context, runID string, status ir.RunStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, string(status), runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run status %s: %w", runID, ErrNotFound)
	}
	return nil
}

// WriteCommand inserts a command record into the store.
// Uses ON CONFLICT DO NOTHING for idempotency. This covers both a repeated
// ID and a second command claiming an occupied (run_id, seq) slot.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteCommand(ctx context.Context, cmd ir.CommandRecord) error {
	incsJSON, err := marshalIncrements(cmd.Increments)
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands
		(id, run_id, seq, kind, message, increments)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		cmd.ID,
		cmd.RunID,
		cmd.Seq,
		cmd.Kind,
		cmd.Message,
		incsJSON,
	)
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// WriteOutcome inserts the final state of a run.
// Each run has at most one outcome; later writes are ignored.
func (s *Store) WriteOutcome(ctx context.Context, out ir.OutcomeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, status, steps, depth, config_hash, error_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		out.RunID,
		string(out.Status),
		out.Steps,
		out.Depth,
		out.ConfigHash,
		out.ErrorCode,
		out.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

// WriteDiagnostic inserts a static-check finding.
// The ID is content-addressed (see ir.DiagnosticID), so re-checking an
// unchanged module is a no-op.
func (s *Store) WriteDiagnostic(ctx context.Context, d ir.DiagnosticRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics
		(id, module, code, field, message, file, line, col)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		d.ID,
		d.Module,
		d.Code,
		d.Field,
		d.Message,
		d.File,
		d.Line,
		d.Column,
	)
	if err != nil {
		return fmt.Errorf("write diagnostic: %w", err)
	}
	return nil
}
