package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/store"
)

// ReplayResult compares a recorded outcome with a fresh re-execution.
type ReplayResult struct {
	RunID    string
	Commands int
	Recorded ir.OutcomeRecord
	Replayed ir.OutcomeRecord
	Diffs    []string // one line per differing field, empty on a match
}

// Match reports whether replay reproduced the recorded outcome.
func (r *ReplayResult) Match() bool { return len(r.Diffs) == 0 }

// Replay re-executes a recorded run from its stored command stream and
// compares the outcome field by field.
//
// The same Run path handles both the original execution and the replay;
// replay only differs in reading commands from the store and writing
// nothing back. Commands are rebuilt through a fresh search.Factory, so a
// corrupted Push fails validation instead of being executed.
//
// Returns an error if the run is unknown or never recorded an outcome.
func Replay(ctx context.Context, s *store.Store, runID string, opts ...Option) (*ReplayResult, error) {
	state, err := s.GetRunState(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if !state.IsComplete {
		return nil, fmt.Errorf("replay %s: run has no outcome", runID)
	}

	factory := search.NewFactory()
	cmds := make([]search.Command, 0, len(state.Commands))
	for _, rec := range state.Commands {
		cmd, err := CommandFromRecord(factory, rec)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", runID, err)
		}
		cmds = append(cmds, cmd)
	}

	base := []Option{
		WithMaxSteps(state.Run.MaxSteps),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	opts = append(base, opts...)
	// Replays never write and always reuse the recorded ID.
	opts = append(opts, WithStore(nil), WithRunIDGenerator(NewFixedGenerator(runID)))

	res, err := New(opts...).Run(ctx, state.Run.Scenario, cmds)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}

	out := &ReplayResult{
		RunID:    runID,
		Commands: len(cmds),
		Recorded: *state.Outcome,
		Replayed: res.Outcome(),
	}
	out.Diffs = diffOutcomes(out.Recorded, out.Replayed)
	return out, nil
}

func diffOutcomes(want, got ir.OutcomeRecord) []string {
	diffs := []string{}
	if want.Status != got.Status {
		diffs = append(diffs, fmt.Sprintf("status: recorded %s, replayed %s", want.Status, got.Status))
	}
	if want.Steps != got.Steps {
		diffs = append(diffs, fmt.Sprintf("steps: recorded %d, replayed %d", want.Steps, got.Steps))
	}
	if want.Depth != got.Depth {
		diffs = append(diffs, fmt.Sprintf("depth: recorded %d, replayed %d", want.Depth, got.Depth))
	}
	if want.ConfigHash != got.ConfigHash {
		diffs = append(diffs, fmt.Sprintf("config_hash: recorded %s, replayed %s", want.ConfigHash, got.ConfigHash))
	}
	if want.ErrorCode != got.ErrorCode {
		diffs = append(diffs, fmt.Sprintf("error_code: recorded %q, replayed %q", want.ErrorCode, got.ErrorCode))
	}
	return diffs
}
