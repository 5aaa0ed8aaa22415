package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/formula/internal/engine"
	"github.com/roach88/formula/internal/harness"
	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/store"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Database string // optional: record the run here
	MaxSteps int    // overrides the scenario's max_steps when positive

	// RunIDs overrides the run ID source (for testing). When nil the
	// scenario's run_id is used if set, a fresh UUIDv7 otherwise.
	RunIDs engine.RunIDGenerator
}

// SearchResult is the outcome of one executed command stream.
type SearchResult struct {
	RunID      string              `json:"run_id"`
	Scenario   string              `json:"scenario"`
	Status     ir.RunStatus        `json:"status"`
	Steps      int64               `json:"steps"`
	Depth      int                 `json:"depth"`
	ConfigHash string              `json:"config_hash"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Error      string              `json:"error,omitempty"`
	Trace      []engine.TraceEvent `json:"trace"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return newSearchCommand(&SearchOptions{RootOptions: rootOpts})
}

func newSearchCommand(opts *SearchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <scenario.yaml>",
		Short: "Execute a scenario's command stream",
		Long: `Execute the push, pop and halt commands of a scenario file through
the reference executor and print the trace.

With --db the run, every command and the outcome are recorded so the
run can be replayed later with "formula replay".

Exit codes:
  0 - The run halted or exhausted its stream
  1 - The run stopped on a runtime error (stack underflow, quota exceeded)
  2 - Command error (scenario not found or invalid, database error)

Examples:
  formula search ./scenarios/backtrack.yaml
  formula search ./scenarios/backtrack.yaml --db ./formula.db
  formula search ./scenarios/quota.yaml --max-steps 10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "maximum commands per run (default: scenario max_steps or 1000)")

	return cmd
}

func runSearch(opts *SearchOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	table, err := scenario.SymbolTable()
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid scenario symbols", err)
	}
	factory := search.NewFactory(search.WithSymbols(table), search.WithLogger(logger))
	cmds, err := scenario.BuildCommands(factory, table)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to build commands", err)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(func(ev engine.TraceEvent) {
			formatter.VerboseLog("[%d] %s", ev.Seq, ev.Command)
		}),
	}
	switch {
	case opts.MaxSteps > 0:
		engineOpts = append(engineOpts, engine.WithMaxSteps(opts.MaxSteps))
	case scenario.MaxSteps > 0:
		engineOpts = append(engineOpts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	switch {
	case opts.RunIDs != nil:
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	case scenario.RunID != "":
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(engine.NewFixedGenerator(scenario.RunID)))
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithStore(st))
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := engine.New(engineOpts...).Run(ctx, scenario.Name, cmds)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run aborted", err)
	}

	out := res.Outcome()
	result := SearchResult{
		RunID:      res.RunID,
		Scenario:   scenario.Name,
		Status:     res.Status,
		Steps:      res.Steps,
		Depth:      res.Final.Depth,
		ConfigHash: res.ConfigHash,
		ErrorCode:  out.ErrorCode,
		Error:      out.ErrorMessage,
		Trace:      res.Trace,
	}
	return outputSearchResult(formatter, result)
}

func outputSearchResult(formatter *OutputFormatter, result SearchResult) error {
	failed := result.Status == ir.RunFailed

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if failed {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeRunFailed, Message: result.Error}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		formatter.Printf("Run %s (%s)\n", result.RunID, result.Scenario)
		for _, ev := range result.Trace {
			formatter.Printf("  [%d] %s -> %s depth=%d\n", ev.Seq, ev.Command, ev.State, ev.Depth)
			if ev.Error != "" {
				formatter.Printf("      error: %s\n", ev.Error)
			}
		}
		formatter.Printf("Status: %s after %d step(s), depth %d\n", result.Status, result.Steps, result.Depth)
	}

	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s failed: %s", result.RunID, result.Error))
	}
	return nil
}
