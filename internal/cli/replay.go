package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/formula/internal/engine"
	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string       `json:"run_id"`
	Commands      int          `json:"commands"`
	Status        ir.RunStatus `json:"status"`
	Deterministic bool         `json:"deterministic"`
	Diffs         []string     `json:"diffs,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [run-id]",
		Short: "Re-execute recorded runs and verify determinism",
		Long: `Re-execute recorded runs from their stored command streams and compare
each outcome (status, steps, depth, configuration hash, error code) with
the recorded one.

Without a run ID every completed run in the database is replayed.

Exit codes:
  0 - All replayed runs reproduced their outcome
  1 - At least one run diverged
  2 - Command error (database not found, unknown or incomplete run)

Examples:
  formula replay --db ./formula.db
  formula replay --db ./formula.db 0192f3a4-...
  formula replay --db ./formula.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runReplay(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, runID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runIDs []string
	if runID != "" {
		runIDs = []string{runID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			if r.Status != ir.RunRunning {
				runIDs = append(runIDs, r.ID)
			}
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:        len(runIDs),
		AllDeterministic: true,
	}
	for _, id := range runIDs {
		formatter.VerboseLog("Replaying run %s", id)
		rep, err := engine.Replay(ctx, st, id, engine.WithLogger(logger))
		if err != nil {
			code := ErrCodeGeneric
			if errors.Is(err, store.ErrNotFound) {
				code = ErrCodeNotFound
			}
			_ = formatter.Error(code, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}

		rr := ReplayRunResult{
			RunID:         id,
			Commands:      rep.Commands,
			Status:        rep.Recorded.Status,
			Deterministic: rep.Match(),
			Diffs:         rep.Diffs,
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
	}

	return outputReplayResult(formatter, result)
}

func outputReplayResult(formatter *OutputFormatter, result ReplayResult) error {
	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.AllDeterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeMismatch, Message: "replay diverged from recorded outcome"}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else if result.TotalRuns == 0 {
		formatter.Printf("No completed runs found in database.\n")
	} else {
		for _, r := range result.Runs {
			verdict := "ok"
			if !r.Deterministic {
				verdict = "MISMATCH"
			}
			formatter.Printf("%s %s (%s, %d command(s))\n", verdict, r.RunID, r.Status, r.Commands)
			for _, d := range r.Diffs {
				formatter.Printf("  %s\n", d)
			}
		}
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from recorded outcome")
	}
	return nil
}

// openExisting opens a database that must already exist; store.Open would
// create an empty one.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	return store.Open(path)
}
