package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/store"
)

// DefaultMaxSteps is the default maximum number of commands per run.
const DefaultMaxSteps = 1000

// TraceEvent describes one consumed command.
type TraceEvent struct {
	Seq     int64       `json:"seq"`
	Kind    search.Kind `json:"kind"`
	Command string      `json:"command"`
	State   State       `json:"state"`
	Depth   int         `json:"depth"`
	Error   string      `json:"error,omitempty"`
}

// Observer receives every trace event as it is produced.
type Observer func(TraceEvent)

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Status     ir.RunStatus
	Steps      int64 // commands consumed, including a failing one
	Trace      []TraceEvent
	Final      Configuration
	ConfigHash string

	// Err is the runtime error that stopped the run, nil unless Status is
	// ir.RunFailed.
	Err error
}

// Outcome converts the result into its persisted form.
func (r *Result) Outcome() ir.OutcomeRecord {
	out := ir.OutcomeRecord{
		RunID:      r.RunID,
		Status:     r.Status,
		Steps:      r.Steps,
		Depth:      r.Final.Depth,
		ConfigHash: r.ConfigHash,
	}
	if r.Err != nil {
		out.ErrorCode = string(ErrorCode(r.Err))
		out.ErrorMessage = r.Err.Error()
	}
	return out
}

// Engine runs command streams through fresh executors.
//
// An Engine holds configuration only; concurrent Run calls are safe when the
// configured store, observer and clock are.
type Engine struct {
	maxSteps int
	logger   *slog.Logger
	store    *store.Store
	observer Observer
	runIDs   RunIDGenerator
	clock    Sequencer
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithMaxSteps sets the maximum steps quota per run.
//
// Default: 1000 steps (DefaultMaxSteps)
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore records every run, command and outcome in s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithObserver registers a hook called for each trace event.
func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = gen
	}
}

// WithClock shares one logical clock across runs. By default every run
// starts a fresh Clock at 0.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
		runIDs:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes cmds in order under a new run ID.
//
// Execution stops at the first Halt, at the first runtime error, or when the
// stream is exhausted. Runtime errors (stack underflow, commands after halt,
// quota exceeded) are reported in Result.Err with Status ir.RunFailed and a
// nil error. The returned error is reserved for cancellation and store
// failures; a cancelled run is left without an outcome.
func (e *Engine) Run(ctx context.Context, scenario string, cmds []search.Command) (*Result, error) {
	runID := e.runIDs.Generate()
	logger := e.logger.With("run_id", runID)

	clock := e.clock
	if clock == nil {
		clock = NewClock()
	}
	quota := NewQuotaEnforcer(e.maxSteps)
	x := NewExecutor()

	if e.store != nil {
		err := e.store.WriteRun(ctx, ir.RunRecord{
			ID:            runID,
			Scenario:      scenario,
			MaxSteps:      e.maxSteps,
			Status:        ir.RunRunning,
			EngineVersion: ir.EngineVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("record run %s: %w", runID, err)
		}
	}

	logger.Info("run starting", "scenario", scenario, "commands", len(cmds), "max_steps", e.maxSteps)

	res := &Result{RunID: runID, Status: ir.RunExhausted, Trace: []TraceEvent{}}

loop:
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			logger.Info("run stopping: context cancelled", "steps", res.Steps)
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}

		seq := clock.Next()

		if e.store != nil && cmd != nil {
			rec, err := CommandToRecord(runID, seq, cmd)
			if err != nil {
				return nil, err
			}
			if err := e.store.WriteCommand(ctx, rec); err != nil {
				return nil, fmt.Errorf("record command %d: %w", seq, err)
			}
		}

		// The command that trips the quota is recorded but never applied.
		if err := quota.Check(runID); err != nil {
			logger.Error("max steps quota exceeded",
				"steps", quota.Current(),
				"limit", e.maxSteps,
				"event", "quota_exceeded",
			)
			qerr := NewQuotaError(runID, quota.Current(), e.maxSteps)
			qerr.Seq = seq
			e.emit(res, traceEvent(seq, cmd, x, qerr))
			res.Status = ir.RunFailed
			res.Err = qerr
			break
		}

		res.Steps++
		applyErr := x.Apply(cmd)
		var re *RuntimeError
		if errors.As(applyErr, &re) {
			re.RunID, re.Seq = runID, seq
		}
		ev := traceEvent(seq, cmd, x, applyErr)
		e.emit(res, ev)

		logger.Debug("command applied",
			"seq", seq,
			"kind", ev.Kind,
			"depth", ev.Depth,
			"state", ev.State,
		)

		switch {
		case applyErr != nil:
			logger.Error("command failed", "seq", seq, "error", applyErr)
			res.Status = ir.RunFailed
			res.Err = applyErr
			break loop
		case x.State() == StateTerminated:
			res.Status = ir.RunHalted
			break loop
		}
	}

	res.Final = x.Configuration()
	hash, err := res.Final.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash configuration: %w", err)
	}
	res.ConfigHash = hash

	if e.store != nil {
		if err := e.store.WriteOutcome(ctx, res.Outcome()); err != nil {
			return nil, fmt.Errorf("record outcome: %w", err)
		}
		if err := e.store.UpdateRunStatus(ctx, runID, res.Status); err != nil {
			return nil, fmt.Errorf("record outcome: %w", err)
		}
	}

	logger.Info("run finished",
		"status", res.Status,
		"steps", res.Steps,
		"depth", res.Final.Depth,
	)
	return res, nil
}

func traceEvent(seq int64, cmd search.Command, x *Executor, err error) TraceEvent {
	ev := TraceEvent{Seq: seq, State: x.State(), Depth: x.Depth()}
	if cmd != nil {
		ev.Kind = cmd.Kind()
		ev.Command = cmd.String()
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func (e *Engine) emit(res *Result, ev TraceEvent) {
	res.Trace = append(res.Trace, ev)
	if e.observer != nil {
		e.observer(ev)
	}
}
