package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/formula/internal/ir"
)

// RunState is everything recorded about a run, gathered for replay.
type RunState struct {
	Run        ir.RunRecord
	Commands   []ir.CommandRecord
	Outcome    *ir.OutcomeRecord // nil while the run is unfinished
	LastSeq    int64
	IsComplete bool // an outcome exists and the status is final
}

// GetRunState retrieves the run, its command stream and its outcome.
// Returns ErrNotFound if the run does not exist.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	var state RunState

	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}
	state.Run = run

	cmds, err := s.ReadCommands(ctx, runID)
	if err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}
	state.Commands = cmds
	if len(cmds) > 0 {
		state.LastSeq = cmds[len(cmds)-1].Seq
	}

	out, err := s.ReadOutcome(ctx, runID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return state, fmt.Errorf("get run state: %w", err)
	default:
		state.Outcome = &out
	}

	state.IsComplete = state.Outcome != nil && run.Status != ir.RunRunning
	return state, nil
}

// FindIncompleteRuns returns the IDs of runs that never recorded an outcome,
// typically because the process died mid-run.
func (s *Store) FindIncompleteRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		WHERE o.run_id IS NULL
		ORDER BY r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query incomplete runs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return ids, nil
}
