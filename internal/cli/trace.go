package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/formula/internal/engine"
	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	RunID    string       `json:"run_id"`
	Scenario string       `json:"scenario"`
	Status   ir.RunStatus `json:"status"`
	MaxSteps int          `json:"max_steps"`
}

// TraceCommand is one recorded command.
type TraceCommand struct {
	Seq     int64  `json:"seq"`
	ID      string `json:"id"`
	Command string `json:"command"`
}

// RunTrace is everything recorded about one run.
type RunTrace struct {
	Run      RunSummary        `json:"run"`
	Commands []TraceCommand    `json:"commands"`
	Outcome  *ir.OutcomeRecord `json:"outcome,omitempty"`
	Complete bool              `json:"complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect recorded runs",
		Long: `Inspect runs recorded with "formula search --db".

Without a run ID, lists every run. With a run ID, shows the recorded
command stream in seq order and the run's outcome.

Examples:
  formula trace --db ./formula.db
  formula trace --db ./formula.db 0192f3a4-...
  formula trace --db ./formula.db 0192f3a4-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListRuns(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runListRuns(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, runSummary(r))
	}

	if formatter.JSON() {
		return formatter.Success(summaries)
	}
	if len(summaries) == 0 {
		formatter.Printf("No runs found in database.\n")
		return nil
	}
	for _, s := range summaries {
		formatter.Printf("%s  %-9s  %s\n", s.RunID, s.Status, s.Scenario)
	}
	return nil
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	state, err := st.GetRunState(cmd.Context(), runID)
	if err != nil {
		code := ErrCodeStore
		if errors.Is(err, store.ErrNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read run %s", runID), err)
	}

	trace, err := buildRunTrace(state)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("corrupt run %s", runID), err)
	}

	if formatter.JSON() {
		return formatter.Success(trace)
	}
	outputTraceText(formatter, trace)
	return nil
}

// buildRunTrace renders each record through a fresh factory, the same path
// replay takes.
func buildRunTrace(state store.RunState) (RunTrace, error) {
	factory := search.NewFactory()
	trace := RunTrace{
		Run:      runSummary(state.Run),
		Commands: make([]TraceCommand, 0, len(state.Commands)),
		Outcome:  state.Outcome,
		Complete: state.IsComplete,
	}
	for _, rec := range state.Commands {
		c, err := engine.CommandFromRecord(factory, rec)
		if err != nil {
			return RunTrace{}, fmt.Errorf("seq %d: %w", rec.Seq, err)
		}
		trace.Commands = append(trace.Commands, TraceCommand{Seq: rec.Seq, ID: rec.ID, Command: c.String()})
	}
	return trace, nil
}

func runSummary(r ir.RunRecord) RunSummary {
	return RunSummary{RunID: r.ID, Scenario: r.Scenario, Status: r.Status, MaxSteps: r.MaxSteps}
}

func outputTraceText(formatter *OutputFormatter, trace RunTrace) {
	formatter.Printf("Run: %s (%s)\n", trace.Run.RunID, trace.Run.Scenario)
	formatter.Printf("Status: %s\n", trace.Run.Status)
	formatter.Printf("\n=== Commands ===\n")
	if len(trace.Commands) == 0 {
		formatter.Printf("  (no commands)\n")
	}
	for _, c := range trace.Commands {
		if formatter.Verbose {
			formatter.Printf("  [%d] %s  %s\n", c.Seq, truncateID(c.ID), c.Command)
		} else {
			formatter.Printf("  [%d] %s\n", c.Seq, c.Command)
		}
	}

	formatter.Printf("\n=== Outcome ===\n")
	if trace.Outcome == nil {
		formatter.Printf("  (incomplete)\n")
		return
	}
	o := trace.Outcome
	formatter.Printf("  Steps:  %d\n", o.Steps)
	formatter.Printf("  Depth:  %d\n", o.Depth)
	formatter.Printf("  Config: %s\n", truncateID(o.ConfigHash))
	if o.ErrorCode != "" {
		formatter.Printf("  Error:  %s\n", o.ErrorMessage)
	}
}

func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
