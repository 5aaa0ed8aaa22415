package engine

import (
	"fmt"
	"maps"
	"math"

	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/symbols"
)

// State is the executor lifecycle state.
type State string

const (
	StateExploring  State = "exploring"
	StateTerminated State = "terminated" // absorbing
)

// budget maps each normalised symbol to its granted instance count.
// Symbols never granted are absent, never zero.
type budget map[symbols.UserSymbol]int

// Executor interprets a search command stream against a checkpoint stack.
//
// An Executor is not safe for concurrent use; one goroutine owns each stack.
type Executor struct {
	state  State
	budget budget
	stack  []budget
}

// NewExecutor returns an executor in the exploring state with an empty
// budget and no checkpoints.
func NewExecutor() *Executor {
	return &Executor{
		state:  StateExploring,
		budget: budget{},
	}
}

// Apply executes one command.
//
// Push checkpoints the current budget and then adds its increments. Pop
// restores the most recent checkpoint. Halt moves to StateTerminated. On
// error the configuration is left unchanged.
func (x *Executor) Apply(cmd search.Command) error {
	if cmd == nil {
		return &RuntimeError{Code: ErrCodeInvalidCommand, Message: "nil command"}
	}
	if x.state == StateTerminated {
		return newTerminatedError(string(cmd.Kind()))
	}

	switch c := cmd.(type) {
	case search.Push:
		for _, inc := range c.Increments() {
			if x.budget[inc.Symbol] > math.MaxInt-inc.Count {
				return newBudgetOverflowError(inc.Symbol.Name, x.budget[inc.Symbol], inc.Count)
			}
		}
		x.stack = append(x.stack, maps.Clone(x.budget))
		for _, inc := range c.Increments() {
			x.budget[inc.Symbol] += inc.Count
		}
	case search.Pop:
		if len(x.stack) == 0 {
			return newStackUnderflowError(c.Message())
		}
		top := len(x.stack) - 1
		x.budget = x.stack[top]
		x.stack[top] = nil
		x.stack = x.stack[:top]
	case search.Halt:
		x.state = StateTerminated
	default:
		return &RuntimeError{Code: ErrCodeInvalidCommand, Message: fmt.Sprintf("unknown command %T", cmd)}
	}
	return nil
}

// State returns the lifecycle state.
func (x *Executor) State() State { return x.state }

// Depth returns the number of outstanding checkpoints.
func (x *Executor) Depth() int { return len(x.stack) }

// Budget returns the instance count granted to sym, 0 if none.
func (x *Executor) Budget(sym symbols.UserSymbol) int {
	return x.budget[symbols.Normalize(sym)]
}

// Configuration returns a snapshot of the executor.
func (x *Executor) Configuration() Configuration {
	cfg := Configuration{
		State:  x.state,
		Depth:  len(x.stack),
		Budget: make([]search.Increment, 0, len(x.budget)),
	}
	for sym, n := range x.budget {
		cfg.Budget = append(cfg.Budget, search.Increment{Symbol: sym, Count: n})
	}
	sortIncrements(cfg.Budget)
	return cfg
}

// Configuration is an immutable snapshot of executor state. Budget is in
// symbols.Compare order.
type Configuration struct {
	State  State              `json:"state"`
	Depth  int                `json:"depth"`
	Budget []search.Increment `json:"budget"`
}

// Hash returns the content address of the configuration.
func (c Configuration) Hash() (string, error) {
	return ir.ConfigHash(string(c.State), c.Depth, IncrementRecords(c.Budget))
}

// Equal reports whether two snapshots describe the same configuration.
func (c Configuration) Equal(other Configuration) bool {
	if c.State != other.State || c.Depth != other.Depth || len(c.Budget) != len(other.Budget) {
		return false
	}
	for i := range c.Budget {
		if c.Budget[i].Count != other.Budget[i].Count ||
			symbols.Compare(c.Budget[i].Symbol, other.Budget[i].Symbol) != 0 {
			return false
		}
	}
	return true
}
