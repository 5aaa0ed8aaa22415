package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/formula/internal/engine"
	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/store"
	"github.com/roach88/formula/internal/testutil"
)

// Harness runs scenarios with a deterministic clock and fixed run IDs.
// A Harness is not safe for concurrent use; its clock restarts per scenario.
type Harness struct {
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the factory and engine.
// Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		clock:  testutil.NewDeterministicClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default Harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh in-memory store
//  2. Build the symbol table and the commands
//  3. Run the commands through the engine, recording to the store
//  4. Replay the recorded run and compare outcomes
//  5. Check expectations and assertions
//
// The returned error is reserved for infrastructure failures. Scenario
// failures are reported through Result.Errors.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()

	table, err := scenario.SymbolTable()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	factory := search.NewFactory(search.WithSymbols(table), search.WithLogger(h.logger))
	cmds, buildErr := scenario.BuildCommands(factory, table)
	if want := scenario.Expect.BuildError; want != "" {
		switch {
		case buildErr == nil:
			result.AddError(fmt.Sprintf("build_error: expected %q, commands built", want))
		case !strings.Contains(buildErr.Error(), want):
			result.AddError(fmt.Sprintf("build_error: expected %q, got %q", want, buildErr.Error()))
		}
		return result, nil
	}
	if buildErr != nil {
		result.AddError(fmt.Sprintf("build commands: %v", buildErr))
		return result, nil
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h.clock.Reset()
	opts := []engine.Option{
		engine.WithStore(st),
		engine.WithLogger(h.logger),
		engine.WithClock(h.clock),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}

	res, err := engine.New(opts...).Run(ctx, scenario.Name, cmds)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	result.RunID = res.RunID
	result.Status = res.Status
	result.Steps = res.Steps
	result.Trace = res.Trace
	result.Final = res.Final

	h.logger.Info("scenario executed",
		"scenario", scenario.Name,
		"run_id", res.RunID,
		"status", res.Status,
		"steps", res.Steps,
	)

	rep, err := engine.Replay(ctx, st, res.RunID, engine.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	for _, d := range rep.Diffs {
		result.AddError("replay: " + d)
	}

	for _, msg := range checkExpect(scenario.Expect, res) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// checkExpect compares the run against the scenario's expect clause.
func checkExpect(want Expect, res *engine.Result) []string {
	var errs []string

	if res.Status != want.Status {
		errs = append(errs, fmt.Sprintf("status: expected %s, got %s", want.Status, res.Status))
	}
	if want.Steps != nil && res.Steps != *want.Steps {
		errs = append(errs, fmt.Sprintf("steps: expected %d, got %d", *want.Steps, res.Steps))
	}
	if want.Depth != nil && res.Final.Depth != *want.Depth {
		errs = append(errs, fmt.Sprintf("depth: expected %d, got %d", *want.Depth, res.Final.Depth))
	}
	if got := string(engine.ErrorCode(res.Err)); got != want.Error {
		errs = append(errs, fmt.Sprintf("error: expected %q, got %q", want.Error, got))
	}

	if want.Budget != nil {
		got := make(map[string]int, len(res.Final.Budget))
		for _, inc := range res.Final.Budget {
			got[inc.Symbol.Name] = inc.Count
		}
		for _, name := range sortedKeys(want.Budget) {
			if got[name] != want.Budget[name] {
				errs = append(errs, fmt.Sprintf("budget %s: expected %d, got %d", name, want.Budget[name], got[name]))
			}
		}
		for _, name := range sortedKeys(got) {
			if _, ok := want.Budget[name]; !ok {
				errs = append(errs, fmt.Sprintf("budget %s: unexpected count %d", name, got[name]))
			}
		}
	}
	return errs
}
